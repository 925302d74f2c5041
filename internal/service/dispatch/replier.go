//go:generate go run go.uber.org/mock/mockgen -source=replier.go -destination=../../mocks/mock_replier.go -package=mocks

package dispatch

import (
	"context"

	"github.com/zhouzirui/chatbox/internal/remote"
)

// Replier turns one user turn into the remote service's reply.
type Replier interface {
	Reply(ctx context.Context, req remote.Request) (remote.Reply, error)
}
