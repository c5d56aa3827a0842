package grpcclient

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryClientInterceptor_Retries(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		retries   int
		wantCalls int
		wantCode  codes.Code
	}{
		{"success first try", nil, 3, 1, codes.OK},
		{"retry unavailable then succeed", []error{status.Error(codes.Unavailable, "down")}, 3, 2, codes.OK},
		{"rate limited until exhausted", []error{
			status.Error(codes.ResourceExhausted, "slow down"),
			status.Error(codes.ResourceExhausted, "slow down"),
			status.Error(codes.ResourceExhausted, "slow down"),
		}, 2, 3, codes.ResourceExhausted},
		{"invalid argument is not retried", []error{status.Error(codes.InvalidArgument, "bad")}, 3, 1, codes.InvalidArgument},
		{"non-status error is not retried", []error{errors.New("boom")}, 3, 1, codes.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
				calls++
				if calls <= len(tt.errs) {
					return tt.errs[calls-1]
				}
				return nil
			}
			icpt := UnaryClientInterceptor(ClientConfig{MaxRetries: tt.retries, RetryDelay: 1})
			err := icpt(context.Background(), "/pricing.v1.PathPricingService/PriceOption", nil, nil, nil, invoker)
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if got := status.Code(err); got != tt.wantCode {
				t.Errorf("code = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestUnaryClientInterceptor_RequestTimeout(t *testing.T) {
	icpt := UnaryClientInterceptor(ClientConfig{RequestTimeout: 5})
	err := icpt(context.Background(), "/m", nil, nil, nil, func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
