package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"

	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/audit"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/config"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/engine"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/httpapi"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/nac"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/security"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/store"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		log.Printf("[BOOT] no .env file, using environment as-is")
	}

	cfgPath := os.Getenv("HOTSPOT_CONFIG")
	if cfgPath == "" {
		cfgPath = "/etc/hotspot/controller.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// audit secret
	auditSecret := ""
	if cfg.Controller.Audit.Enabled {
		auditSecret, err = config.ResolveSecret(cfg.Controller.Audit.SecretRef)
		if err != nil {
			log.Fatalf("resolve audit secret failed: %v", err)
		}
	}
	aud := audit.New(cfg.Controller.Audit.Enabled, auditSecret)

	// stores: redis when configured, process memory otherwise
	var (
		vouchers interface {
			engine.VoucherStore
			httpapi.VoucherCatalog
		}
		sessions interface {
			engine.SessionStore
			httpapi.SessionCatalog
		}
		coins  engine.CoinTracker
		pinger httpapi.Pinger
	)
	if cfg.Redis.Host != "" {
		log.Printf("[BOOT] redis store %s:%d", cfg.Redis.Host, cfg.Redis.Port)
		redisPwd := ""
		if cfg.Redis.AuthRef != "" {
			redisPwd, _ = config.ResolveSecret(cfg.Redis.AuthRef)
		}
		st := store.New(cfg, redisPwd)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := st.Ping(ctx); err != nil {
			log.Printf("[BOOT] redis ping failed: %v", err)
		}
		cancel()
		vouchers = store.NewVoucherStore(st)
		sessions = store.NewSessionStore(st)
		coins = store.NewCoinTracker(st)
		pinger = st
	} else {
		log.Printf("[BOOT] standalone mode, in-memory stores")
		vouchers = store.NewMemVoucherStore()
		sessions = store.NewMemSessionStore()
		coins = store.NewMemCoinTracker()
	}

	bridge := nac.NewExecBridge(cfg.NAC.Binary, time.Duration(cfg.NAC.TimeoutSec)*time.Second)
	eng := engine.New(vouchers, sessions, coins, bridge, aud)

	engine.InitMetrics()
	httpapi.InitMetrics()

	// admin credentials
	adminPassword, err := config.ResolveSecret(cfg.Controller.Admin.PasswordRef)
	if err != nil {
		log.Fatalf("resolve admin password failed: %v", err)
	}
	jwtSecret, err := config.ResolveSecret(cfg.Controller.Admin.JWTSecretRef)
	if err != nil {
		log.Fatalf("resolve admin jwt secret failed: %v", err)
	}
	issuer := security.NewJWTIssuer([]byte(jwtSecret),
		time.Duration(cfg.Controller.Admin.TokenTTLSec)*time.Second)

	pulseSecret := ""
	if cfg.CoinSlot.PulseSecretRef != "" {
		pulseSecret, err = config.ResolveSecret(cfg.CoinSlot.PulseSecretRef)
		if err != nil {
			log.Fatalf("resolve coinslot secret failed: %v", err)
		}
	}

	// expiry sweep + NAC re-assertion
	sweeper := engine.NewSweeper(eng, cfg.Sweep.ReassertEvery)
	sched := gocron.NewScheduler(time.UTC)
	if _, err := sched.Every(cfg.Sweep.IntervalSec).Seconds().Do(sweeper.Tick); err != nil {
		log.Fatalf("schedule sweep failed: %v", err)
	}
	sched.StartAsync()
	log.Printf("[BOOT] sweep every %ds, reassert every %d ticks",
		cfg.Sweep.IntervalSec, cfg.Sweep.ReassertEvery)

	srv := httpapi.New(cfg, eng, vouchers, sessions, pinger, issuer, aud, adminPassword, pulseSecret)

	addr := fmt.Sprintf("%s:%d", cfg.Controller.Bind.Host, cfg.Controller.Bind.Port)
	log.Printf("[BOOT] starting %s on %s (nac=%s)", cfg.Controller.Name, addr, cfg.NAC.Binary)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatal(err)
	}
}
