package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rizome-dev/researchgo/pkg/config"
	"github.com/rizome-dev/researchgo/pkg/models"
	"github.com/rizome-dev/researchgo/pkg/render"
	"github.com/rizome-dev/researchgo/pkg/research"
	"github.com/rizome-dev/researchgo/pkg/submitter"
	"github.com/rizome-dev/researchgo/pkg/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Define flags
	var (
		baseURL     = flag.String("base-url", cfg.BaseURL, "Answering service base URL")
		format      = flag.String("format", "text", "Output format: text, markdown, html or json")
		interactive = flag.Bool("i", false, "Interactive mode")
		serve       = flag.Bool("serve", false, "Serve the web form")
		addr        = flag.String("addr", cfg.ListenAddr, "Listen address for -serve")
		retries     = flag.Int("retry", 0, "Retry transient failures up to N times")
		check       = flag.Bool("check", false, "Check that the answering service is reachable")
		verbose     = flag.Bool("v", false, "Debug logging")
	)

	flag.Parse()

	level := cfg.LogLevel
	if *verbose {
		level = research.LogLevelDebug
	}
	logger := research.NewSimpleLogger(level)

	cfg.BaseURL = *baseURL
	client := research.NewClient(cfg.ClientOptions(logger)...)

	var fetcher research.Fetcher = research.NewObservableClient(client, research.ObservabilityOptions{
		Logger:       logger,
		LogRequests:  *verbose,
		LogResponses: *verbose,
	})
	if *retries > 0 {
		retryCfg := research.DefaultRetryConfig()
		retryCfg.MaxRetries = *retries
		fetcher = research.NewRetryClient(fetcher, retryCfg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *check:
		runCheck(ctx, client)
	case *serve:
		runServer(ctx, fetcher, logger, *addr)
	case *interactive:
		runInteractive(ctx, fetcher, *format)
	default:
		question := strings.Join(flag.Args(), " ")
		if strings.TrimSpace(question) == "" {
			fmt.Println("Usage: research-cli [options] <question>")
			fmt.Println("       research-cli -i      (interactive mode)")
			fmt.Println("       research-cli -serve  (web form)")
			flag.PrintDefaults()
			return
		}
		runSingle(ctx, fetcher, question, *format)
	}
}

func runCheck(ctx context.Context, client *research.Client) {
	if err := client.Health(ctx); err != nil {
		log.Fatalf("Service at %s is not healthy: %v", client.BaseURL(), err)
	}
	fmt.Printf("Service at %s is reachable\n", client.BaseURL())
}

func runSingle(ctx context.Context, fetcher research.Fetcher, question, format string) {
	resp, err := fetcher.FetchAnswer(ctx, question)
	if err != nil {
		log.Fatalf("Error fetching answer: %v", err)
	}

	out, err := formatResponse(resp, format)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(out)
}

func runInteractive(ctx context.Context, fetcher research.Fetcher, format string) {
	fmt.Println("Interactive mode.")
	fmt.Println("Type 'exit' or 'quit' to end the session.")
	fmt.Println()

	sub := submitter.New(fetcher, submitter.WithErrorReporter(func(_ string, err error) {
		fmt.Printf("Error fetching answer: %v\n", err)
	}))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := scanner.Text()
		switch strings.TrimSpace(input) {
		case "exit", "quit":
			fmt.Println("Goodbye!")
			return
		}

		resp, err := sub.Submit(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		out, err := formatResponse(resp, format)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println()
		fmt.Println(out)
	}
}

func runServer(ctx context.Context, fetcher research.Fetcher, logger research.Logger, addr string) {
	breaker := research.NewCircuitBreaker(fetcher, 5, 30*time.Second)
	srv := web.NewServer(breaker, logger)

	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Submitter().Cancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving question form", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

func formatResponse(resp *models.AnswerResponse, format string) (string, error) {
	out := render.Render(resp)

	switch format {
	case "text":
		return render.Text(out), nil
	case "markdown", "md":
		return render.Markdown(out), nil
	case "html":
		return string(render.HTML(out)) + "\n", nil
	case "json":
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode response: %w", err)
		}
		return string(data) + "\n", nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}
