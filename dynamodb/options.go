package dynamodb

import (
	"errors"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option]
// functions (such as [WithAPI] or [WithQueryPageSize]) to customise the
// defaults.
type Options struct {
	dynamoDBAPI   API
	queryPageSize int32
}

func newOptions() *Options {
	return &Options{}
}

func (o *Options) validate() error {
	if o.queryPageSize < 0 {
		return errors.New("query page size cannot be negative")
	}

	return nil
}

// WithAPI sets a custom [API] implementation. This is useful when a
// custom DynamoDB configuration is required, or for injecting mocks in
// tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithQueryPageSize caps the number of items fetched per Query request.
// Queries still follow pagination to exhaustion, so this bounds request
// size, not result size. Zero (the default) leaves the limit to
// DynamoDB.
func WithQueryPageSize(n int32) Option {
	return func(o *Options) {
		o.queryPageSize = n
	}
}
