// Command tmibot is a minimal Twitch chat bot built on the tmi client: it
// connects to one channel (TMIBOT_CHANNEL), logs chat activity, and answers a
// handful of "!" commands.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chatkit/tmi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := tmi.NewClient(&tmi.ClientOptions{
		Options: &tmi.Options{
			Debug: true,
		},
		Identity: &tmi.Identity{
			Username: envOr("TMIBOT_USERNAME", "your_bot_name"),
			Password: envOr("TMIBOT_OAUTH_TOKEN", "oauth:your_bot_token"),
		},
		Channels: []string{
			envOr("TMIBOT_CHANNEL", "your_channel"),
		},
	})

	setupEventHandlers(client)

	log.Println("Connecting to Twitch...")
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}

	<-ctx.Done()

	log.Println("Shutting down...")
	if err := client.Disconnect(); err != nil {
		log.Printf("Disconnect: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupEventHandlers(client *tmi.Client) {
	client.On("connected", func(args ...any) {
		server, _ := args[0].(string)
		port, _ := args[1].(int)
		log.Printf("Connected to %s:%d", server, port)
	})

	client.On("disconnected", func(args ...any) {
		reason, _ := args[0].(string)
		log.Printf("Disconnected: %s", reason)
	})

	client.On("join", func(args ...any) {
		channel, _ := args[0].(string)
		username, _ := args[1].(string)
		self, _ := args[2].(bool)

		if self {
			log.Printf("Joined channel: %s", channel)
		} else {
			log.Printf("User %s joined %s", username, channel)
		}
	})

	client.On("message", func(args ...any) {
		channel, _ := args[0].(string)
		tags, _ := args[1].(map[string]any)
		message, _ := args[2].(string)
		self, _ := args[3].(bool)

		if self {
			return
		}

		username := ""
		if val, ok := tags["username"].(string); ok {
			username = val
		}

		log.Printf("[%s] %s: %s", channel, username, message)
		handleCommands(client, channel, username, message)
	})

	client.On("subscription", func(args ...any) {
		channel, _ := args[0].(string)
		username, _ := args[1].(string)
		log.Printf("[SUB] %s subscribed to %s!", username, channel)

		go sayf(client, channel, "Thank you for subscribing, @%s!", username)
	})

	client.On("resub", func(args ...any) {
		channel, _ := args[0].(string)
		username, _ := args[1].(string)
		months, _ := args[2].(int)
		log.Printf("[RESUB] %s resubscribed to %s for %d months!", username, channel, months)

		go sayf(client, channel, "Thank you for %d months, @%s!", months, username)
	})

	client.On("raided", func(args ...any) {
		channel, _ := args[0].(string)
		username, _ := args[1].(string)
		viewers, _ := args[2].(int)
		log.Printf("[RAID] %s raided %s with %d viewers!", username, channel, viewers)

		go sayf(client, channel, "Welcome raiders from @%s!", username)
	})

	client.On("cheer", func(args ...any) {
		channel, _ := args[0].(string)
		tags, _ := args[1].(map[string]any)
		message, _ := args[2].(string)

		username := ""
		if val, ok := tags["username"].(string); ok {
			username = val
		}
		bits := ""
		if val, ok := tags["bits"].(string); ok {
			bits = val
		}

		log.Printf("[CHEER] %s cheered %s bits in %s: %s", username, bits, channel, message)
	})

	client.On("ban", func(args ...any) {
		channel, _ := args[0].(string)
		username, _ := args[1].(string)
		log.Printf("[BAN] %s was banned from %s", username, channel)
	})

	client.On("timeout", func(args ...any) {
		channel, _ := args[0].(string)
		username, _ := args[1].(string)
		duration, _ := args[3].(int)
		log.Printf("[TIMEOUT] %s was timed out in %s for %d seconds", username, channel, duration)
	})

	client.On("notice", func(args ...any) {
		channel, _ := args[0].(string)
		msgid, _ := args[1].(string)
		msg, _ := args[2].(string)
		log.Printf("[NOTICE %s] [%s] %s", msgid, channel, msg)
	})
}

func sayf(client *tmi.Client, channel, format string, a ...any) {
	if err := client.Say(context.Background(), channel, fmt.Sprintf(format, a...)); err != nil {
		log.Printf("say failed in %s: %v", channel, err)
	}
}

func handleCommands(client *tmi.Client, channel, username, message string) {
	if !strings.HasPrefix(message, "!") {
		return
	}

	parts := strings.Fields(message)
	if len(parts) == 0 {
		return
	}

	switch strings.ToLower(parts[0]) {
	case "!hello":
		go sayf(client, channel, "@%s, hello!", username)

	case "!ping":
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.Ping(ctx); err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
			sayf(client, channel, "Pong!")
		}()

	case "!commands":
		go sayf(client, channel, "Available commands: !hello, !ping, !mods, !commands")

	case "!mods":
		go func() {
			mods, err := client.Mods(context.Background(), channel)
			if err != nil {
				log.Printf("mods failed: %v", err)
				return
			}
			sayf(client, channel, "Moderators: %s", strings.Join(mods, ", "))
		}()

	default:
	}
}
