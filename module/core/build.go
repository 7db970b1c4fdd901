package core

import (
	"database/sql"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	handler "github.com/sinch-billava935/AlertMate-360/module/core/internal/handler/http"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/handler/subscriber"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/provider"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/provider/fcm"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/provider/twilio"
	rediscache "github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/cache/redis"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/database/postgres"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/publisher/rabbitmq"
	"github.com/sinch-billava935/AlertMate-360/module/core/metrics"
	"github.com/sinch-billava935/AlertMate-360/module/core/service"
)

// Options carries the provider credentials and tuning the module cannot
// read from its stores.
type Options struct {
	TwilioAccountSID string
	TwilioAuthToken  string
	SMSFrom          string
	FCMServerKey     string
	// SMSRatePerSec caps outbound SMS across all fan-outs. Zero disables
	// the limiter.
	SMSRatePerSec float64
}

type Module struct {
	GeofenceSvc     *service.GeofenceService
	AlertSvc        *service.AlertService
	NotificationSvc *service.NotificationService
	PositionSvc     *service.PositionService

	handler            *handler.UserHandler
	locationSubscriber *subscriber.LocationSubscriber
	sosSubscriber      *subscriber.SOSSubscriber
}

func Build(db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, rdb *goredis.Client, opts Options) (*Module, error) {
	metrics.RegisterDefault()

	geofenceRepo := postgres.NewGeofenceRepo(db)
	contactRepo := postgres.NewContactRepo(db)
	tokenRepo := postgres.NewTokenRepo(db)
	positionRepo := postgres.NewPositionRepo(db)
	tokenCache := rediscache.NewTokenStore(rdb)

	eventPub, err := rabbitmq.NewEventPublisher(amqpConn)
	if err != nil {
		return nil, fmt.Errorf("event publisher: %w", err)
	}

	pushSender := fcm.NewSender(opts.FCMServerKey)
	smsSender := twilio.NewSender(opts.TwilioAccountSID, opts.TwilioAuthToken)

	var limiter *rate.Limiter
	if opts.SMSRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.SMSRatePerSec), 1)
	}

	positionSvc := service.NewPositionService(positionRepo)
	notificationSvc := service.NewNotificationService(tokenCache, tokenRepo, pushSender)
	geofenceSvc := service.NewGeofenceService(geofenceRepo, positionSvc, notificationSvc, eventPub)
	alertSvc := service.NewAlertService(contactRepo, nil, []provider.MessageSender{smsSender}, eventPub, limiter, opts.SMSFrom)

	h := handler.NewUserHandler(geofenceSvc, positionSvc, alertSvc)
	locSub := subscriber.NewLocationSubscriber(mqttClient, geofenceSvc)
	sosSub := subscriber.NewSOSSubscriber(mqttClient, alertSvc)

	return &Module{
		GeofenceSvc:        geofenceSvc,
		AlertSvc:           alertSvc,
		NotificationSvc:    notificationSvc,
		PositionSvc:        positionSvc,
		handler:            h,
		locationSubscriber: locSub,
		sosSubscriber:      sosSub,
	}, nil
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.handler.Register(r)
}

func (m *Module) StartSubscribers() error {
	if err := m.locationSubscriber.Start(); err != nil {
		return fmt.Errorf("location subscriber: %w", err)
	}
	if err := m.sosSubscriber.Start(); err != nil {
		return fmt.Errorf("sos subscriber: %w", err)
	}
	return nil
}
