package main

import (
	"context"
	"log"
	"net"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"songrate/internal/app"
	"songrate/internal/auth"
	"songrate/internal/grpcserver"
	"songrate/pkg/database"
	"songrate/pkg/utils"
)

func main() {
	utils.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	grpcCfg := utils.LoadGrpcConfig()
	listener, err := net.Listen("tcp", grpcCfg.Addr)
	if err != nil {
		log.Fatalf("grpc listen failed: %v", err)
	}

	svc := app.NewRoundService(ctx, db, nil, nil)

	var srv *grpcserver.Server
	if grpcCfg.TrustUserHeader {
		log.Println("[grpc] trusting x-rate-user metadata")
		srv = grpcserver.NewServer(svc, nil)
	} else {
		tokens := app.TokenService(utils.LoadAuthConfig())
		srv = grpcserver.NewServer(svc, &tokens)
		srv.Versions = auth.NewRepo(db)
	}
	gs := grpcserver.NewGRPCServer(srv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("gRPC server listening on %s", grpcCfg.Addr)
		return gs.Serve(listener)
	})
	g.Go(func() error {
		<-gctx.Done()
		gs.GracefulStop()
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("grpc server stopped: %v", err)
	}
}
