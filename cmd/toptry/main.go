package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"toptry/internal/client"
)

const usage = `usage: toptry [-base URL] [-state FILE] <command> [args]

commands:
  register <email> <username> <password>
  login <email-or-username> <password>
  logout
  me
  wardrobe
  catalog
  feed [trending|new]
  create-look <selfie-data-url-file> <item-ref>[,<item-ref>...] <item-id>[,<item-id>...]
  like <look-id>
  follow <user-id>
`

func main() {
	base := flag.String("base", "http://localhost:8080", "API origin")
	statePath := flag.String("state", "", "state cache file (default per-user cache dir)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	api, err := client.NewAPI(*base)
	if err != nil {
		log.Fatalf("init client: %v", err)
	}
	store := client.NewStore(api, *statePath)

	ctx := context.Background()
	if err := store.Hydrate(ctx); err != nil {
		log.Printf("hydrate: %v", err)
	}

	if err := run(ctx, store, api, args); err != nil {
		if err == client.ErrAuthRequired {
			log.Fatal("authentication required: run `toptry login` first")
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, store *client.Store, api *client.API, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		if len(rest) != 3 {
			return fmt.Errorf("register needs <email> <username> <password>")
		}
		if err := store.Register(ctx, rest[0], rest[1], rest[2]); err != nil {
			return err
		}
		return printJSON(store.Snapshot().User)

	case "login":
		if len(rest) != 2 {
			return fmt.Errorf("login needs <email-or-username> <password>")
		}
		if err := store.Login(ctx, rest[0], rest[1]); err != nil {
			return err
		}
		return printJSON(store.Snapshot().User)

	case "logout":
		return store.Logout(ctx)

	case "me":
		return printJSON(store.Snapshot().User)

	case "wardrobe":
		return printJSON(store.Snapshot().Wardrobe)

	case "catalog":
		return printJSON(client.SampleCatalog())

	case "feed":
		sort := ""
		if len(rest) > 0 {
			sort = rest[0]
		}
		looks, err := store.RefreshFeed(ctx, sort)
		if err != nil {
			return err
		}
		return printJSON(looks)

	case "create-look":
		if len(rest) != 3 {
			return fmt.Errorf("create-look needs <selfie-file> <item-refs> <item-ids>")
		}
		selfie, err := os.ReadFile(rest[0])
		if err != nil {
			return fmt.Errorf("read selfie: %w", err)
		}
		look, err := store.CreateLook(ctx, client.CreateLookInput{
			SelfieDataURL: strings.TrimSpace(string(selfie)),
			ItemImageURLs: strings.Split(rest[1], ","),
			ItemIDs:       strings.Split(rest[2], ","),
		})
		if err != nil {
			return err
		}
		snap := store.Snapshot()
		fmt.Fprintf(os.Stderr, "looks remaining: %d\n", snap.LooksRemaining)
		return printJSON(look)

	case "like":
		if len(rest) != 1 {
			return fmt.Errorf("like needs <look-id>")
		}
		result, err := store.LikeLook(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(result)

	case "follow":
		if len(rest) != 1 {
			return fmt.Errorf("follow needs <user-id>")
		}
		following, err := api.ToggleFollow(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]bool{"following": following})

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
