package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"roomchat/config"
	"roomchat/discovery"
	"roomchat/network"
	"roomchat/reconcile"
	"roomchat/session"
	"roomchat/ui"
)

func main() {
	serverFlag := flag.String("server", "", "room server base URL (overrides config)")
	roomFlag := flag.String("room", "", "room id to join")
	createFlag := flag.Bool("create", false, "create a new room and join it")
	discoverFlag := flag.Bool("discover", false, "find a room server on the local network via mDNS")
	leaveFlag := flag.Bool("leave", false, "leave the current room and exit")
	flag.Parse()

	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		log.Fatalf("startup failed while loading config: %v", err)
	}
	dataDir := filepath.Dir(cfgPath)

	sessions, err := session.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening session store: %v", err)
	}

	if *leaveFlag {
		if err := sessions.Leave(); err != nil {
			log.Fatalf("could not leave room: %v", err)
		}
		fmt.Println("left room")
		return
	}

	roomID, err := resolveRoom(sessions, *roomFlag, *createFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	serverURL, err := resolveServer(cfg, *serverFlag, *discoverFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	sess, err := reconcile.NewSession(roomID, sessions.SenderID())
	if err != nil {
		log.Fatalf("could not start room session: %v", err)
	}

	renderer := ui.NewRenderer(os.Stdout, sess.SenderID)
	reconciler := reconcile.NewReconciler(sess, renderer, reconcile.ReconcilerOptions{})
	client := network.NewClient(serverURL, network.RetryPolicy{})
	poller := reconcile.NewPoller(sess, client, reconciler, reconcile.PollerOptions{
		Interval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	})
	sender := reconcile.NewSender(sess, client, reconciler, renderer)

	fmt.Printf("Room:       %s\n", roomID)
	fmt.Printf("Sender ID:  %s\n", sess.SenderID)
	fmt.Printf("Server:     %s\n", serverURL)
	fmt.Println("Type a message and press enter. Commands: /delete ids..., /select, /pick id, /file path, /leave, /quit")

	ctx := context.Background()
	if err := poller.Poll(ctx); err != nil {
		log.Printf("initial sync failed: %v", err)
	}
	poller.Start()
	defer poller.Stop()

	runCommandLoop(ctx, sessions, renderer, sender)
}

func resolveRoom(sessions *session.Store, roomFlag string, create bool) (string, error) {
	switch {
	case create:
		roomID, err := session.GenerateRoomID()
		if err != nil {
			return "", fmt.Errorf("could not generate room id: %w", err)
		}
		if err := sessions.Join(roomID); err != nil {
			return "", fmt.Errorf("could not join room: %w", err)
		}
		return roomID, nil
	case roomFlag != "":
		if err := sessions.Join(roomFlag); err != nil {
			return "", fmt.Errorf("could not join room: %w", err)
		}
		return roomFlag, nil
	default:
		roomID, err := sessions.CurrentRoomID()
		if errors.Is(err, session.ErrNoRoom) {
			return "", errors.New("no active room: pass -room or -create")
		}
		if err != nil {
			return "", err
		}
		return roomID, nil
	}
}

func resolveServer(cfg *config.ClientConfig, serverFlag string, discover bool) (string, error) {
	if serverFlag != "" {
		return serverFlag, nil
	}
	if discover {
		url, err := discovery.Lookup(context.Background(), discovery.Config{})
		if err != nil {
			return "", fmt.Errorf("server discovery failed: %w", err)
		}
		return url, nil
	}
	return cfg.ServerURL, nil
}

func runCommandLoop(ctx context.Context, sessions *session.Store, renderer *ui.Renderer, sender *reconcile.Sender) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if _, err := sender.SendText(ctx, line); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/quit":
			return
		case "/leave":
			if err := sessions.Leave(); err != nil {
				fmt.Printf("could not leave room: %v\n", err)
				continue
			}
			fmt.Println("left room")
			return
		case "/delete":
			ids := fields[1:]
			if len(ids) == 0 {
				ids = renderer.SelectedIDs()
				renderer.SetSelectionMode(false)
			}
			if len(ids) == 0 {
				fmt.Println("usage: /delete id [id...] (or /select and /pick first)")
				continue
			}
			if err := sender.DeleteMessages(ctx, ids); err != nil {
				fmt.Printf("delete failed: %v\n", err)
			}
		case "/select":
			enabled := !renderer.SelectionMode()
			renderer.SetSelectionMode(enabled)
			if enabled {
				fmt.Println("selection mode on: /pick id to select, /delete to remove")
			} else {
				fmt.Println("selection mode off")
			}
		case "/pick":
			if len(fields) != 2 {
				fmt.Println("usage: /pick id")
				continue
			}
			if renderer.ToggleSelected(fields[1]) {
				fmt.Printf("selected %s\n", fields[1])
			} else {
				fmt.Printf("deselected %s\n", fields[1])
			}
		case "/file":
			if len(fields) != 2 {
				fmt.Println("usage: /file path")
				continue
			}
			if err := sendFile(ctx, sender, fields[1]); err != nil {
				fmt.Printf("file send failed: %v\n", err)
			}
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func sendFile(ctx context.Context, sender *reconcile.Sender, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	_, err = sender.SendMedia(ctx, mediaKind(mimeType), mimeType, name, data)
	return err
}

func mediaKind(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "file"
	}
}
