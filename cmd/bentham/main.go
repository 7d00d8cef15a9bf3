package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bentham/bentham/internal/account"
	"github.com/bentham/bentham/internal/adapter"
	"github.com/bentham/bentham/internal/buildinfo"
	"github.com/bentham/bentham/internal/checkpoint"
	"github.com/bentham/bentham/internal/clock"
	"github.com/bentham/bentham/internal/config"
	"github.com/bentham/bentham/internal/credential"
	"github.com/bentham/bentham/internal/manifest"
	"github.com/bentham/bentham/internal/orchestrator"
	"github.com/bentham/bentham/internal/proxymanager"
	"github.com/bentham/bentham/internal/scanloop"
)

// appRuntime bundles every long-lived component wired up at startup, mirroring
// the teacher's topologyRuntime grouping.
type appRuntime struct {
	envCfg     *config.EnvConfig
	runtimeCfg *config.RuntimeConfig

	vault         credential.Vault
	credPools     *credential.PoolManager
	accounts      *account.Manager
	proxies       *proxymanager.Manager
	adapters      *adapter.Registry
	orchestrators *orchestrator.Manager
	ckptStore     *checkpoint.Store

	stopCh chan struct{}
}

func main() {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}
	runtimeCfg := config.NewDefaultRuntimeConfig()

	rt, err := newAppRuntime(envCfg, runtimeCfg)
	if err != nil {
		fatalf("startup: %v", err)
	}
	defer close(rt.stopCh)

	log.Printf("bentham %s (%s, built %s) listening on %s", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime, envCfg.ListenAddress)

	mux := rt.buildMux()
	srv := &http.Server{Addr: envCfg.ListenAddress, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down")
}

// newAppRuntime constructs every component in dependency order: vault first
// (nothing depends on it being ready), then the pools/registries that sit on
// top of it, then the orchestrator, which depends on all of the above via
// the job-dispatch loop it will eventually drive.
func newAppRuntime(envCfg *config.EnvConfig, runtimeCfg *config.RuntimeConfig) (*appRuntime, error) {
	now := clock.Real()
	rnd := clock.RealRand()

	vault, err := newVault(envCfg)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}

	const defaultCredentialErrorCooldown = 30 * time.Second
	credPools := credential.NewPoolManager(vault, now, rnd, func(surfaceID string) credential.PoolConfig {
		return credential.PoolConfig{
			SurfaceID:     surfaceID,
			Strategy:      manifest.StrategyRoundRobin,
			MaxErrors:     3,
			ErrorCooldown: defaultCredentialErrorCooldown,
		}
	})

	accountRegistry := account.NewRegistry(now)
	accountMgr := account.NewManager(accountRegistry, account.ManagerConfig{
		MaxCheckoutDuration:    runtimeCfg.Account.MaxCheckoutDuration.Std(),
		DefaultCooldownSeconds: runtimeCfg.Account.DefaultCooldownSeconds,
	})

	geo := proxymanager.NewGeoResolver(proxymanager.GeoResolverConfig{})
	proxyMgr := proxymanager.NewManager(nil, now, rnd, proxymanager.HealthConfig{
		UnhealthyThreshold: runtimeCfg.Proxy.UnhealthyThreshold,
		RecoveryThreshold:  runtimeCfg.Proxy.RecoveryThreshold,
	}, runtimeCfg.Proxy.DefaultStickyDuration.Std(), geo)

	ckptStore, err := checkpoint.NewStore(envCfg.CheckpointDir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}

	hooks := orchestrator.Hooks{
		OnStudyTransition: func(from, to manifest.StudyStatus, s *manifest.Study) {
			log.Printf("study %s: %s -> %s", s.ID, from, to)
		},
		OnDeadlineAtRisk: func(s *manifest.Study) {
			log.Printf("study %s: deadline at risk, projected completion %v", s.ID, s.DeadlineStatus.ProjectedCompletion)
		},
		OnHookError: func(hookName string, recovered any) {
			log.Printf("hook %s panicked: %v", hookName, recovered)
		},
	}
	orchestratorMgr := orchestrator.NewManager(now, rnd, hooks, ckptStore)

	return &appRuntime{
		envCfg:        envCfg,
		runtimeCfg:    runtimeCfg,
		vault:         vault,
		credPools:     credPools,
		accounts:      accountMgr,
		proxies:       proxyMgr,
		adapters:      adapter.NewRegistry(),
		orchestrators: orchestratorMgr,
		ckptStore:     ckptStore,
		stopCh:        make(chan struct{}),
	}, nil
}

func newVault(envCfg *config.EnvConfig) (credential.Vault, error) {
	switch envCfg.VaultBackend {
	case "environment":
		return credential.NewEnvVault(envCfg.CredentialEnvPrefix, nil, os.LookupEnv), nil
	case "encrypted_file":
		return credential.NewEncryptedFileVault(envCfg.VaultDir, envCfg.VaultMasterPassword, true)
	default:
		return credential.NewMemoryVault(), nil
	}
}

// startBackgroundSweeps wires the deadline/checkpoint cadence for studyID,
// mirroring the teacher's scanloop-driven sweeps rather than an internal
// ticker, per the orchestrator's own design note.
func (rt *appRuntime) startBackgroundSweeps(studyID string) {
	go scanloop.Run(rt.stopCh, 15*time.Second, 5*time.Second, func() {
		if err := rt.orchestrators.EvaluateDeadline(studyID, rt.runtimeCfg.SafetyMargin.Std()); err != nil {
			log.Printf("study %s: deadline evaluation: %v", studyID, err)
		}
	})
	if !rt.runtimeCfg.Checkpoint.Enabled {
		return
	}
	go scanloop.Run(rt.stopCh, rt.runtimeCfg.Checkpoint.SaveIntervalSeconds.Std(), 2*time.Second, func() {
		if _, err := rt.orchestrators.CreateCheckpoint(studyID); err != nil {
			log.Printf("study %s: checkpoint: %v", studyID, err)
		}
	})
}

func (rt *appRuntime) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/studies", rt.handleSubmitStudy)
	mux.HandleFunc("/v1/studies/pause", rt.handlePause)
	mux.HandleFunc("/v1/studies/resume", rt.handleResume)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

func (rt *appRuntime) handleSubmitStudy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		StudyID  string            `json:"studyId"`
		TenantID string            `json:"tenantId"`
		Manifest manifest.Manifest `json:"manifest"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var shuffle func(n int) int
	if body.Manifest.Execution.ShuffleQueries {
		shuffle = clock.IntN(uint64(time.Now().UnixNano()))
	}

	rt.orchestrators.RegisterStudy(body.StudyID, body.TenantID, &body.Manifest, shuffle)
	if err := rt.orchestrators.StartStudy(body.StudyID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	rt.startBackgroundSweeps(body.StudyID)

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"studyId": body.StudyID, "status": string(manifest.StatusExecuting)})
}

func (rt *appRuntime) handlePause(w http.ResponseWriter, r *http.Request) {
	studyID := r.URL.Query().Get("studyId")
	reason := r.URL.Query().Get("reason")
	if err := rt.orchestrators.PauseStudy(studyID, reason); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (rt *appRuntime) handleResume(w http.ResponseWriter, r *http.Request) {
	studyID := r.URL.Query().Get("studyId")
	if err := rt.orchestrators.ResumeStudy(studyID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}
