package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"bigharvest.farm/internal/persistence/gateway"
	"bigharvest.farm/internal/protocol"
	"bigharvest.farm/internal/sim/catalogs"
	"bigharvest.farm/internal/sim/farm"
	"bigharvest.farm/internal/sim/session"
	"bigharvest.farm/internal/sim/tuning"
	"bigharvest.farm/internal/transport/httpapi"
	"bigharvest.farm/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory (embedded defaults when missing)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		storeKind  = flag.String("store", "", "profile store: file or sqlite (default: sqlite when BHF_DB is set)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite action index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := loadCatalogs(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := loadTuning(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	schemas, err := protocol.LoadSchemas()
	if err != nil {
		logger.Fatalf("load schemas: %v", err)
	}

	backend, err := openBackend(backendConfig{
		Kind:      *storeKind,
		DataDir:   *dataDir,
		SavesDir:  os.Getenv("BHF_SAVES_DIR"),
		StateFile: os.Getenv("BHF_STATE_FILE"),
		DBPath:    os.Getenv("BHF_DB"),
		DisableDB: *disableDB,
	})
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer backend.Close()
	if backend.Index != nil {
		if err := backend.Index.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index catalogs: %v", err)
		}
	}
	logger.Printf("profile store: %s", backend.Describe)

	gw := gateway.New(backend.Store, farm.NewShaper(cats, tune), filepath.Join(*dataDir, "archive"), logger)

	ctx, cancel := signalContext()
	defer cancel()

	sessions := session.NewRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	httpapi.NewServer(httpapi.Config{
		Gateway:   gw,
		Schemas:   schemas,
		DataDir:   *dataDir,
		Sessions:  sessions,
		Logger:    logger,
		PerSecond: tune.RateLimits.HTTPPerSecond,
		Burst:     tune.RateLimits.HTTPBurst,
	}).Register(mux)
	mux.HandleFunc("/admin/v1/profiles", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		profiles, err := gw.Profiles()
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "profiles": profiles})
	})

	wsCfg := ws.Config{
		Gateway:  gw,
		Tuning:   tune,
		Schemas:  schemas,
		DataDir:  *dataDir,
		Logger:   logger,
		Context:  ctx,
		Sessions: sessions,
	}
	if backend.Index != nil {
		wsCfg.Index = backend.Index
	}
	wsSrv := ws.NewServer(wsCfg)
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Hijacked websocket conns outlive srv.Shutdown; their sessions must save
	// before the store closes.
	cancel()
	waitCtx, cancelWait := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelWait()
	if err := wsSrv.Shutdown(waitCtx); err != nil {
		logger.Printf("sessions still open at exit: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func loadCatalogs(dir string) (*catalogs.Catalogs, error) {
	if _, err := os.Stat(filepath.Join(dir, "crops.json")); err == nil {
		return catalogs.LoadDir(dir)
	}
	return catalogs.Default()
}

func loadTuning(path string) (tuning.Tuning, error) {
	if _, err := os.Stat(path); err == nil {
		return tuning.Load(path)
	}
	return tuning.Default()
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
