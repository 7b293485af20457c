package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lashpay/lash-relayer/internal/config"
	"github.com/lashpay/lash-relayer/internal/db"
	"github.com/lashpay/lash-relayer/internal/electrum"
	"github.com/lashpay/lash-relayer/internal/guard"
	"github.com/lashpay/lash-relayer/internal/http"
	"github.com/lashpay/lash-relayer/internal/payment"
	"github.com/lashpay/lash-relayer/internal/state"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	DatabaseManager *db.DatabaseManager
	State           *state.State
	ReplayGuard     *guard.ReplayGuard
	PaymentService  *payment.Service
	HTTPServer      *http.HTTPServer
}

func NewApplication() *Application {
	config.InitConfig()
	cfg := &config.AppConfig

	policy, err := guard.ParsePolicy(cfg.ReplayGuardPolicy)
	if err != nil {
		log.Fatalf("Invalid REPLAY_GUARD_POLICY: %v", err)
	}

	dbm := db.NewDatabaseManager()
	state := state.InitializeState(dbm)
	replayGuard := guard.NewReplayGuard(state, policy)
	electrumClient := electrum.NewClient(cfg.ElectrumServers, electrum.OptionsFromConfig(cfg))
	paymentService := payment.NewService(payment.OptionsFromConfig(cfg), payment.ElectrumLedgers(electrumClient), replayGuard, state.EventBus)
	httpServer := http.NewHTTPServer(paymentService, cfg)

	return &Application{
		DatabaseManager: dbm,
		State:           state,
		ReplayGuard:     replayGuard,
		PaymentService:  paymentService,
		HTTPServer:      httpServer,
	}
}

func (app *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.HTTPServer.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.auditSends(ctx)
	}()

	<-stop
	log.Info("Receiving exit signal...")

	cancel()

	wg.Wait()
	if err := app.DatabaseManager.Close(); err != nil {
		log.Errorf("Close database: %v", err)
	}
	log.Info("Server stopped")
}

// auditSends logs the outcome of every send published on the event bus.
func (app *Application) auditSends(ctx context.Context) {
	ch := make(chan interface{}, state.SEND_EVENT_CHAN_LENGTH)
	bus := app.State.EventBus
	for _, t := range []state.EventType{state.SendRecorded, state.SendFailed} {
		bus.Subscribe(t, ch)
		defer bus.Unsubscribe(t, ch)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			ev, ok := msg.(state.SendEvent)
			if !ok {
				continue
			}
			if ev.Error != "" {
				log.WithFields(log.Fields{"request": ev.RequestId, "sender": ev.Sender, "kind": ev.Kind, "stage": ev.Stage}).
					Warnf("Send failed: %s", ev.Error)
				continue
			}
			log.WithFields(log.Fields{"request": ev.RequestId, "sender": ev.Sender, "kind": ev.Kind, "height": ev.Height}).
				Infof("Send recorded: txid %s, amount %d, fee %d", ev.Txid, ev.Amount, ev.Fee)
		}
	}
}

func main() {
	app := NewApplication()
	app.Run()
}
