package main

import (
	"context"
	"log"

	"codecollab-be/internal/bootstrap"
	"codecollab-be/internal/config"
	"codecollab-be/internal/model"
	"codecollab-be/internal/server"
	"codecollab-be/internal/tracer"
	"codecollab-be/pkg/database"
)

func main() {
	// 0. Initialize tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load configuration
	cfg := config.Load()

	// 2. Initialize database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if err := gormDB.AutoMigrate(&model.Room{}); err != nil {
		log.Panicf("Unable to migrate room schema: %v", err)
	}

	// 3. Bootstrap dependencies
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start background services
	ctx := context.Background()
	if err := container.DeliveryService.Consume(ctx); err != nil {
		log.Panicf("Unable to start delivery consumer: %v", err)
	}
	container.ExecutionService.Start(ctx)

	// 5. Initialize server
	srv := server.New(cfg, container)

	// 6. Run server
	log.Fatal(srv.Run())
}
