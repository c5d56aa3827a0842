package grpc

import (
	"context"
	"fmt"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wyfcoding/pathpricing/internal/pricing/application"
	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
	"github.com/wyfcoding/pathpricing/internal/pricing/infrastructure/persistence/memory"
	"github.com/wyfcoding/pathpricing/pkg/config"
)

type counterIDs struct{ n int }

func (c *counterIDs) Next() string {
	c.n++
	return fmt.Sprintf("RUN-%d", c.n)
}

func newTestClient(t *testing.T) *PathPricingClient {
	t.Helper()

	repo := memory.NewPricingRunRepository()
	defaults := config.EngineConfig{
		NumSims:       10000,
		MaxSims:       100000,
		Workers:       4,
		BlockSize:     1024,
		Seed:          1,
		Precision:     "double",
		NumericPolicy: "FAIL",
		Tolerance:     0.1,
		Confidence:    0.99,
	}
	devices := []domain.DeviceProperties{{ID: 0, Name: "test", Cores: 4, MaxWorkers: 16, MaxBlockSize: 1 << 20}}
	cmd := application.NewPricingCommandService(repo, nil, nil, nil, &counterIDs{}, nil, defaults, devices)
	svc := application.NewPricingService(cmd, application.NewPricingQueryService(repo, nil))

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	NewServer(s, svc)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewPathPricingClient(conn)
}

func priceRequest(t *testing.T, overrides map[string]any) *structpb.Struct {
	t.Helper()
	body := map[string]any{
		"symbol":      "AAPL",
		"option_type": "CALL",
		"spot":        40.0,
		"strike":      35.0,
		"rate":        0.03,
		"sigma":       0.2,
		"tenor":       1.0 / 3.0,
		"dt":          1.0 / 261.0,
		"barrier":     45.0,
	}
	for k, v := range overrides {
		body[k] = v
	}
	req, err := structpb.NewStruct(body)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestServer_PriceOptionThenGetRun(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	out, err := client.PriceOption(ctx, priceRequest(t, nil))
	if err != nil {
		t.Fatalf("PriceOption() error = %v", err)
	}
	fields := out.GetFields()
	id := fields["id"].GetStringValue()
	if id == "" || fields["status"].GetStringValue() != string(domain.RunStatusSucceeded) {
		t.Fatalf("run = %v", out)
	}
	if fields["steps"].GetNumberValue() != 87 {
		t.Errorf("steps = %v", fields["steps"])
	}

	got, err := client.GetRun(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{"id": structpb.NewStringValue(id)}})
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.GetFields()["asian"].GetStringValue() != fields["asian"].GetStringValue() {
		t.Errorf("asian = %v, want %v", got.GetFields()["asian"], fields["asian"])
	}
}

func TestServer_Errors(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		want  codes.Code
		stage domain.Stage
	}{
		{
			name: "missing symbol",
			call: func() error {
				_, err := client.PriceOption(ctx, priceRequest(t, map[string]any{"symbol": ""}))
				return err
			},
			want: codes.InvalidArgument,
		},
		{
			name: "workers beyond device",
			call: func() error {
				_, err := client.PriceOption(ctx, priceRequest(t, map[string]any{"workers": 64.0}))
				return err
			},
			want:  codes.InvalidArgument,
			stage: domain.StageSetup,
		},
		{
			name: "single precision overflow",
			call: func() error {
				_, err := client.PriceOption(ctx, priceRequest(t, map[string]any{
					"precision": "single", "rate": 85.53, "sigma": 1.0, "tenor": 1.0, "dt": 1.0,
					"num_sims": 2000.0, "block_size": 100.0,
				}))
				return err
			},
			want:  codes.FailedPrecondition,
			stage: domain.StageNumeric,
		},
		{
			name: "run not found",
			call: func() error {
				_, err := client.GetRun(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{"id": structpb.NewStringValue("RUN-404")}})
				return err
			},
			want: codes.NotFound,
		},
		{
			name: "missing id",
			call: func() error {
				_, err := client.GetRun(ctx, &structpb.Struct{})
				return err
			},
			want: codes.InvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := status.FromError(tt.call())
			if st.Code() != tt.want {
				t.Fatalf("code = %v, want %v (%s)", st.Code(), tt.want, st.Message())
			}
			if tt.stage == "" {
				return
			}
			var found bool
			for _, d := range st.Details() {
				if s, ok := d.(*structpb.Struct); ok && s.GetFields()["stage"].GetStringValue() == string(tt.stage) {
					found = true
				}
			}
			if !found {
				t.Errorf("details = %v, want stage %s", st.Details(), tt.stage)
			}
		})
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{domain.ErrInvalidConfig, codes.InvalidArgument},
		{&domain.NumericError{}, codes.FailedPrecondition},
		{domain.ErrRunNotFound, codes.NotFound},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{fmt.Errorf("db down"), codes.Internal},
	}
	for _, tt := range tests {
		if got := CodeFor(tt.err); got != tt.want {
			t.Errorf("CodeFor(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
