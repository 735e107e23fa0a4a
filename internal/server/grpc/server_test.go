package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
)

type validatorFunc func(ctx context.Context, value string) (*auth.Principal, error)

func (f validatorFunc) Validate(ctx context.Context, value string) (*auth.Principal, error) {
	return f(ctx, value)
}

func acceptOnly(good string) Validator {
	return validatorFunc(func(_ context.Context, value string) (*auth.Principal, error) {
		if value == good {
			return &auth.Principal{AccountID: "acc-1", Identity: "alice@x.com"}, nil
		}
		return nil, common.ErrTokenNotFound
	})
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop{}, acceptOnly("good"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, acceptOnly("good"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

// startServer serves on a loopback listener and returns a client connection.
func startServer(t *testing.T, v Validator) *grpc.ClientConn {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewGRPCServer("", logging.Nop{}, v)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, l) }()

	conn, err := grpc.NewClient(l.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return conn
}

func TestServe_HealthIsPublic(t *testing.T) {
	conn := startServer(t, acceptOnly("good"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServe_ReflectionRequiresToken(t *testing.T) {
	conn := startServer(t, acceptOnly("good"))
	client := reflectionpb.NewServerReflectionClient(conn)

	list := func(ctx context.Context) error {
		stream, err := client.ServerReflectionInfo(ctx)
		if err != nil {
			return err
		}
		// a rejected stream may already be closed; the status comes from Recv
		_ = stream.Send(&reflectionpb.ServerReflectionRequest{
			MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{ListServices: "*"},
		})
		_, err = stream.Recv()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := list(ctx)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	err = list(metadata.AppendToOutgoingContext(ctx, authorizationMetadataKey, "Bearer wrong"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	err = list(metadata.AppendToOutgoingContext(ctx, authorizationMetadataKey, "Bearer good"))
	assert.NoError(t, err)
}
