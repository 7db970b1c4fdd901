package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sinch-billava935/AlertMate-360/config"
	"github.com/sinch-billava935/AlertMate-360/module/core"
	"github.com/sinch-billava935/AlertMate-360/module/core/metrics"
)

func main() {
	cfg := config.Load()

	db, err := config.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer func() { _ = db.Close() }()

	amqpConn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer func() { _ = amqpConn.Close() }()

	mqttClient, err := config.NewMQTT(cfg)
	if err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	defer mqttClient.Disconnect(250)

	rdb, err := config.NewRedis(cfg)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	if cfg.TwilioAccountSID == "" || cfg.SMSFrom == "" {
		log.Println("warning: twilio credentials not set, SMS sends will fail")
	}
	if cfg.FCMServerKey == "" {
		log.Println("warning: FCM server key not set, push sends will fail")
	}

	coreModule, err := core.Build(db, amqpConn, mqttClient, rdb, core.Options{
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		SMSFrom:          cfg.SMSFrom,
		FCMServerKey:     cfg.FCMServerKey,
		SMSRatePerSec:    cfg.SMSRatePerSec,
	})
	if err != nil {
		log.Fatalf("core module: %v", err)
	}

	if err := coreModule.StartSubscribers(); err != nil {
		log.Fatalf("start subscribers: %v", err)
	}

	r := gin.Default()

	health := config.NewHealthChecker(db, amqpConn, mqttClient, rdb)
	health.Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	coreModule.RegisterRoutes(r.Group("/api"))

	log.Printf("listening on :%s", cfg.HTTPPort)
	if err := r.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
