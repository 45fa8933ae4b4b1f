package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sigaid/sigaid-core/internal/client"
	"github.com/sigaid/sigaid-core/internal/identity"
	"github.com/sigaid/sigaid-core/internal/statechain"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "version":
		fmt.Printf("sigaid-agent version=%s commit=%s build_date=%s\n", version, commit, buildDate)
	case "keygen":
		runKeygen(args)
	case "register":
		runRegister(args)
	case "lease":
		runLease(args)
	case "append":
		runAppend(args)
	case "prove":
		runProve(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sigaid-agent <keygen|register|lease|append|prove|version> [flags]")
}

func runKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	keyfilePath := fs.String("keyfile", "agent.key", "path to write the encrypted keyfile")
	password := fs.String("password", "", "keyfile passphrase (required)")
	_ = fs.Parse(args)

	if *password == "" {
		log.Fatal("sigaid-agent keygen: -password is required")
	}

	kp, err := identity.Generate()
	if err != nil {
		log.Fatalf("sigaid-agent keygen: generating key pair: %v", err)
	}
	defer kp.Close()

	if err := kp.ToKeyfile(*keyfilePath, *password, identity.DefaultKDFParams()); err != nil {
		log.Fatalf("sigaid-agent keygen: writing keyfile: %v", err)
	}

	agentID, err := kp.AgentID()
	if err != nil {
		log.Fatalf("sigaid-agent keygen: deriving agent id: %v", err)
	}
	fmt.Printf("agent_id=%s keyfile=%s\n", agentID, *keyfilePath)
}

func loadKeyPair(keyfilePath, password string) *identity.KeyPair {
	kp, err := identity.FromKeyfile(keyfilePath, password)
	if err != nil {
		log.Fatalf("sigaid-agent: loading keyfile: %v", err)
	}
	return kp
}

func runRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	keyfilePath := fs.String("keyfile", "agent.key", "path to the encrypted keyfile")
	password := fs.String("password", "", "keyfile passphrase")
	_ = fs.Parse(args)

	kp := loadKeyPair(*keyfilePath, *password)
	defer kp.Close()

	agent, err := client.NewAgent(kp, client.ConfigFromEnv())
	if err != nil {
		log.Fatalf("sigaid-agent register: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := agent.Register(ctx, nil); err != nil {
		log.Fatalf("sigaid-agent register: %v", err)
	}
	fmt.Printf("agent_id=%s registered\n", agent.AgentID())
}

func runLease(args []string) {
	fs := flag.NewFlagSet("lease", flag.ExitOnError)
	keyfilePath := fs.String("keyfile", "agent.key", "path to the encrypted keyfile")
	password := fs.String("password", "", "keyfile passphrase")
	ttl := fs.Duration("ttl", client.DefaultLeaseTTL, "lease duration")
	wait := fs.Bool("wait", false, "retry with backoff while the lease is held by another session")
	_ = fs.Parse(args)

	kp := loadKeyPair(*keyfilePath, *password)
	defer kp.Close()

	agent, err := client.NewAgent(kp, client.ConfigFromEnv())
	if err != nil {
		log.Fatalf("sigaid-agent lease: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	acquireCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var acquireErr error
	if *wait {
		acquireErr = agent.AcquireLeaseWait(acquireCtx, *ttl)
	} else {
		acquireErr = agent.AcquireLease(acquireCtx, *ttl)
	}
	if acquireErr != nil {
		log.Fatalf("sigaid-agent lease: %v", acquireErr)
	}
	fmt.Printf("agent_id=%s lease acquired for %s\n", agent.AgentID(), *ttl)

	select {
	case err := <-agent.LeaseLost():
		log.Fatalf("sigaid-agent lease: lost held lease: %v", err)
	case <-ctx.Done():
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer releaseCancel()
		if err := agent.ReleaseLease(releaseCtx); err != nil {
			log.Printf("sigaid-agent lease: release on shutdown: %v", err)
		}
	}
}

func runAppend(args []string) {
	fs := flag.NewFlagSet("append", flag.ExitOnError)
	keyfilePath := fs.String("keyfile", "agent.key", "path to the encrypted keyfile")
	password := fs.String("password", "", "keyfile passphrase")
	actionType := fs.String("type", string(statechain.ActionCustom), "action type")
	summary := fs.String("summary", "", "one-line summary of the action")
	_ = fs.Parse(args)

	kp := loadKeyPair(*keyfilePath, *password)
	defer kp.Close()

	agent, err := client.NewAgent(kp, client.ConfigFromEnv())
	if err != nil {
		log.Fatalf("sigaid-agent append: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	head, err := agent.AppendAction(ctx, statechain.ActionType(*actionType), *summary, nil)
	if err != nil {
		log.Fatalf("sigaid-agent append: %v", err)
	}
	fmt.Printf("sequence=%d entry_hash=%s\n", head.Sequence, hex.EncodeToString(head.EntryHash[:]))
}

func runProve(args []string) {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	keyfilePath := fs.String("keyfile", "agent.key", "path to the encrypted keyfile")
	password := fs.String("password", "", "keyfile passphrase")
	challengeHex := fs.String("challenge", "", "hex-encoded challenge issued by a verifier")
	requireLease := fs.Bool("require-lease", false, "require the lease to still be held")
	_ = fs.Parse(args)

	challenge, err := hex.DecodeString(*challengeHex)
	if err != nil {
		log.Fatalf("sigaid-agent prove: decoding -challenge: %v", err)
	}

	kp := loadKeyPair(*keyfilePath, *password)
	defer kp.Close()

	agent, err := client.NewAgent(kp, client.ConfigFromEnv())
	if err != nil {
		log.Fatalf("sigaid-agent prove: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := agent.Prove(ctx, challenge, *requireLease, nil)
	if err != nil {
		log.Fatalf("sigaid-agent prove: %v", err)
	}
	fmt.Printf("valid=%t reason=%s offline=%t\n", result.Valid, result.Reason, result.Offline)
}
