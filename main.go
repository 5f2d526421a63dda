package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"socket-chat-server/client"
	"socket-chat-server/config"
	"socket-chat-server/hub"
	"socket-chat-server/protocol"
	"socket-chat-server/server"
	ws "socket-chat-server/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  protocol.SessionFrameSize,
	WriteBufferSize: protocol.SessionFrameSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	serverMode := flag.Bool("s", false, "Run as chat server")
	addr := flag.String("addr", "", "Server address (overrides CHAT_ADDR)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage:\n\t%[1]s -s [-addr host:port]\n\t%[1]s [-addr host:port] <name>\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Address = *addr
	}
	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serverMode {
		if err := runServer(ctx, cfg); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	name := flag.Arg(0)
	if name == "" {
		fmt.Fprintln(os.Stderr, "No Name Given")
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(runClient(ctx, cfg.Address, name))
}

func setupLogger(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func runServer(ctx context.Context, cfg config.Config) error {
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("error starting server: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clients := hub.New()
	srv := server.New(clients,
		server.WithHandshakeTimeout(cfg.HandshakeTimeout),
		server.WithWriteTimeout(cfg.WriteTimeout),
		server.WithQueueSize(cfg.QueueSize),
	)

	var httpServer *http.Server
	if cfg.HTTPAddress != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", wsHandler(ctx, srv))
		mux.HandleFunc("/health", healthHandler)
		mux.HandleFunc("/stats", statsHandler(clients))
		httpServer = &http.Server{Addr: cfg.HTTPAddress, Handler: mux}

		go func() {
			slog.Info("http server starting", "addr", cfg.HTTPAddress)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "error", err)
			}
		}()
	}

	err = srv.Serve(ctx, ln)

	slog.Info("server shutting down")
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}
	cancel()
	clients.Close()
	srv.Wait()
	return err
}

func wsHandler(ctx context.Context, srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}
		srv.Attach(ctx, ws.NewConn(uuid.NewString(), conn))
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(clients *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := clients.Names()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Sessions int      `json:"sessions"`
			Names    []string `json:"names"`
		}{len(names), names})
	}
}

func runClient(ctx context.Context, addr, name string) int {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, addr, name)
	cancel()
	switch {
	case errors.Is(err, client.ErrDenied):
		fmt.Println("Connection Denied!")
		return 1
	case err != nil:
		fmt.Println("Error connecting to server:", err)
		return 1
	}
	defer c.Close()
	fmt.Println("Connection Accepted! Welcome!")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, err := c.Receive()
			if err != nil {
				return
			}
			if msg.Opcode == protocol.OpDenied {
				return
			}
			if line := render(msg); line != "" {
				fmt.Println(line)
			}
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			c.Send(protocol.CmdExit)
			return 0
		case <-done:
			return 0
		case line, ok := <-lines:
			if !ok {
				c.Send(protocol.CmdExit)
				return 0
			}
			if err := c.Send(line); err != nil {
				fmt.Println("ERR:", err)
			}
		}
	}
}

func render(msg protocol.Message) string {
	switch msg.Opcode {
	case protocol.OpMessage:
		return fmt.Sprintf("%s> %s", msg.Sender, msg.Body)
	case protocol.OpPrivate:
		return fmt.Sprintf("%s whispered: %s", msg.Sender, msg.Body)
	case protocol.OpUserJoined:
		return fmt.Sprintf("%s joined the server!", msg.Sender)
	case protocol.OpUserLeft:
		return fmt.Sprintf("%s left the server!", msg.Sender)
	}
	return ""
}
