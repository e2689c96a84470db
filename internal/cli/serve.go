package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/signspeak/internal/auth"
	"github.com/ayusman/signspeak/internal/capture"
	"github.com/ayusman/signspeak/internal/config"
	"github.com/ayusman/signspeak/internal/detector"
	"github.com/ayusman/signspeak/internal/notify"
	"github.com/ayusman/signspeak/internal/recognizer"
	"github.com/ayusman/signspeak/internal/server"
	"github.com/ayusman/signspeak/internal/store"
	"github.com/ayusman/signspeak/internal/tray"
)

const (
	shutdownTimeout = 10 * time.Second
	sessionCleanup  = time.Hour
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server and recognizer",
	Long: `Start the signspeak web server. The recognizer opens the camera when a
client starts translation (or at startup with recognition.auto_start) and
pushes results over the websocket.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (overrides config)")
	serveCmd.Flags().Bool("tray", false, "Show a system tray menu")
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if cmd.Flags().Changed("tray") {
		cfg.Server.Tray, _ = cmd.Flags().GetBool("tray")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions := auth.NewSessionManager(st, cfg.Server.SessionSecret, auth.DefaultSessionTTL)
	sessions.SetSecureCookies(cfg.Server.SecureCookies)
	svc := auth.NewService(st, sessions, newNotifier(cfg.Notify))

	if cfg.Admin.Email != "" {
		created, err := svc.EnsureAdmin(cfg.Admin.FullName, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			logrus.WithField("email", cfg.Admin.Email).Info("created admin account")
		}
	}

	rec, err := newRecognizer(st, cfg)
	if err != nil {
		return err
	}
	defer rec.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go sessions.RunCleanup(ctx, sessionCleanup)

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		logrus.WithField("dir", staticDir).Info("serving web app")
	}

	srv := server.New(server.Config{
		StaticDir:      staticDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Store:          st,
		Auth:           svc,
		Recognizer:     rec,
	})

	var serveErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
			serveErr = err
			cancel()
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "signspeak running on %s\nPress Ctrl+C to stop\n", browserURL(cfg.Server.Addr))

	if cfg.Server.Tray {
		t := newTray(rec, browserURL(cfg.Server.Addr))
		t.OnQuit(cancel)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// The tray owns the main goroutine until it quits.
		t.Run()
	}

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("error during shutdown")
	}
	<-done

	return serveErr
}

// newRecognizer seeds and loads the samples, then builds the recognizer with
// the device camera and, when enabled, the MediaPipe detector.
func newRecognizer(st *store.Store, cfg *config.Config) (*recognizer.Recognizer, error) {
	seeded, err := seedSamples(st, cfg.Recognition.SamplesFile, io.Discard)
	if err != nil {
		return nil, fmt.Errorf("seed samples: %w", err)
	}
	if seeded > 0 {
		logrus.WithFields(logrus.Fields{
			"file":    cfg.Recognition.SamplesFile,
			"samples": seeded,
		}).Info("seeded samples")
	}

	classifier, err := st.Samples().Classifier()
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}

	rec := recognizer.New(recognizer.Config{
		Camera:          capture.NewCamera(capture.Config{DeviceID: cfg.Recognition.CameraID}),
		Classifier:      classifier,
		LiveInterval:    cfg.Recognition.LiveInterval,
		CaptureInterval: cfg.Recognition.CaptureInterval,
	})

	if cfg.Detector.Enabled {
		det, err := detector.NewMediaPipeDetector(detector.Config{
			ScriptPath: cfg.Detector.ScriptPath,
			PythonPath: cfg.Detector.PythonPath,
		})
		if err != nil {
			logrus.WithError(err).Warn("hand detector unavailable, recognition will wait for it")
		} else {
			rec.SetDetector(det)
		}
	}

	if cfg.Recognition.AutoStart != "" {
		mode, err := recognizer.ParseMode(cfg.Recognition.AutoStart)
		if err != nil {
			return nil, err
		}
		if err := rec.Start(mode); err != nil {
			logrus.WithError(err).Warn("could not start recognition")
		}
	}

	logrus.WithFields(logrus.Fields{
		"samples":   classifier.Len(),
		"dimension": classifier.Dim(),
	}).Info("recognizer ready")

	return rec, nil
}

func newNotifier(c config.NotifyConfig) notify.Notifier {
	if c.Command == "" {
		return notify.LogNotifier{}
	}
	return notify.NewCommandNotifier(c.Command, c.Args, c.Timeout)
}

func newTray(rec *recognizer.Recognizer, url string) *tray.Tray {
	t := tray.New()
	refresh := func() {
		mode, running := rec.Running()
		t.SetRunning(mode, running)
	}

	t.OnStart(func(mode recognizer.Mode) {
		if err := rec.Start(mode); err != nil {
			logrus.WithError(err).Warn("could not start recognition")
		}
		refresh()
	})
	t.OnStop(func() {
		rec.Stop()
		refresh()
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			logrus.WithError(err).Warn("could not open browser")
		}
	})
	rec.OnResult(t.Update)
	refresh()

	return t
}

// browserURL turns a listen address into a URL a local browser can open.
func browserURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the built web app in common locations:
// "web/dist", "web", their parents, and ~/.signspeak/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web/dist", "web", "../web/dist", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".signspeak", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
