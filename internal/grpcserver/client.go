package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls rate.RoundService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
	// User is sent as x-rate-user; Token, when set, as a bearer token.
	User  string
	Token string
}

func NewClient(cc grpc.ClientConnInterface, user, token string) *Client {
	return &Client{cc: cc, User: user, Token: token}
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.User != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, UserMetadataKey, c.User)
	}
	if c.Token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, authorizationKey, "Bearer "+c.Token)
	}
	return ctx
}

func (c *Client) ListRounds(ctx context.Context) (*ListRoundsResponse, error) {
	out := new(ListRoundsResponse)
	if err := c.cc.Invoke(c.outgoing(ctx), methodListRounds, &ListRoundsRequest{}, out, grpc.ForceCodec(Codec{})); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetRound(ctx context.Context, id string) (*GetRoundResponse, error) {
	out := new(GetRoundResponse)
	if err := c.cc.Invoke(c.outgoing(ctx), methodGetRound, &GetRoundRequest{ID: id}, out, grpc.ForceCodec(Codec{})); err != nil {
		return nil, err
	}
	return out, nil
}
