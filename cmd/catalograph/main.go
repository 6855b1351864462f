package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/catalograph/catalograph/internal/catalog"
	"github.com/catalograph/catalograph/internal/eventbus"
	"github.com/catalograph/catalograph/internal/otel"
	"github.com/catalograph/catalograph/internal/resolver"
	"github.com/catalograph/catalograph/internal/server"
	"github.com/catalograph/catalograph/internal/storage"
	"github.com/catalograph/catalograph/internal/storage/dynamo"
	"github.com/catalograph/catalograph/internal/storage/memory"
)

const rootUsage = `catalograph - GraphQL gateway for the product catalog

USAGE:
  catalograph <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL endpoint over the catalog tables
  seed             Write a small sample catalog into the storage backend
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -server.addr <addr>            HTTP listen address (default: :8080)
  -server.pretty                 Pretty-print JSON responses
  -server.timeout <duration>     Per-request timeout, e.g. 10s (default: 10s)
  -server.cors-origin <origin>   Allowed CORS origin. Repeatable
  -storage.memory                Use the in-memory backend with sample data (dev)
  -storage.region <region>       AWS region (default: eu-west-2)
  -storage.endpoint <url>        DynamoDB endpoint override (e.g. local DynamoDB)
  -storage.table.products <t>    Products table name (default: products)
  -storage.table.reviews <t>     Reviews table name (default: reviews)
  -storage.table.inventory <t>   Inventory table name (default: inventory)
  -otel.endpoint <addr>          OTLP collector endpoint
  -otel.service <name>           OpenTelemetry service name (default: catalograph)
`

const seedUsage = `seed FLAGS:
  -storage.region <region>       AWS region (default: eu-west-2)
  -storage.endpoint <url>        DynamoDB endpoint override (e.g. local DynamoDB)
  -storage.table.products <t>    Products table name (default: products)
  -storage.table.reviews <t>     Reviews table name (default: reviews)
  -storage.table.inventory <t>   Inventory table name (default: inventory)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "serve":
		return cmdServe(args[1:])
	case "seed":
		return cmdSeed(args[1:])
	case "help":
		return cmdHelp(args[1:])
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "seed":
		fmt.Print(seedUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type storageFlags struct {
	region    string
	endpoint  string
	products  string
	reviews   string
	inventory string
}

func (f *storageFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.region, "storage.region", "eu-west-2", "AWS region")
	fs.StringVar(&f.endpoint, "storage.endpoint", "", "DynamoDB endpoint override")
	fs.StringVar(&f.products, "storage.table.products", "products", "Products table name")
	fs.StringVar(&f.reviews, "storage.table.reviews", "reviews", "Reviews table name")
	fs.StringVar(&f.inventory, "storage.table.inventory", "inventory", "Inventory table name")
}

func (f *storageFlags) backend(ctx context.Context) (storage.Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if f.endpoint != "" {
			o.BaseEndpoint = aws.String(f.endpoint)
		}
	})
	return dynamo.New(client, dynamo.Tables{
		Products:  f.products,
		Reviews:   f.reviews,
		Inventory: f.inventory,
	}), nil
}

func cmdServe(args []string) error {
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	useMemory := false
	otelEndpoint := ""
	otelService := "catalograph"
	var corsOrigins stringListFlag
	var sf storageFlags

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Var(&corsOrigins, "server.cors-origin", "Allowed CORS origin")
	fs.BoolVar(&useMemory, "storage.memory", useMemory, "Use the in-memory backend")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	ctx := context.Background()

	var backend storage.Backend
	if useMemory {
		mem := memory.New(25)
		if err := seedCatalog(ctx, mem); err != nil {
			return fmt.Errorf("seed memory backend: %w", err)
		}
		backend = mem
	} else {
		var err error
		backend, err = sf.backend(ctx)
		if err != nil {
			return err
		}
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	sopts := []server.Option{}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	if len(corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(corsOrigins...))
	}
	h, err := server.New(resolver.Factory(backend), catalog.Schema(), sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	log.Printf("GraphQL server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func cmdSeed(args []string) error {
	var sf storageFlags
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, seedUsage)
		return err
	}

	ctx := context.Background()
	backend, err := sf.backend(ctx)
	if err != nil {
		return err
	}
	if err := seedCatalog(ctx, backend); err != nil {
		return err
	}
	log.Print("sample catalog written")
	return nil
}

// seedCatalog writes a small sample data set through the storage adapter.
func seedCatalog(ctx context.Context, backend storage.Backend) error {
	products := []struct {
		id, name, description string
		price                 string
		quantity              int64
		location              string
		comments              []string
		ratings               []int64
	}{
		{
			id: "p1", name: "Mechanical Keyboard", description: "Tenkeyless, hot-swappable switches",
			price: "89.99", quantity: 12, location: "warehouse-a",
			comments: []string{"Clacky and wonderful", "Solid build"}, ratings: []int64{5, 4},
		},
		{
			id: "p2", name: "Trackball Mouse", description: "Thumb-operated, wireless",
			price: "49.50", quantity: 3, location: "warehouse-b",
			comments: []string{"Took a week to get used to"}, ratings: []int64{3},
		},
		{
			// No inventory record and no reviews: exercises the absent paths.
			id: "p3", name: "Monitor Stand", price: "19.99",
		},
	}

	for _, p := range products {
		attrs := storage.Attributes{"product_id": p.id, "name": p.name}
		if p.description != "" {
			attrs["description"] = p.description
		}
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			return fmt.Errorf("product %s: %w", p.id, err)
		}
		attrs["price"] = price
		if err := backend.Put(ctx, storage.KindProduct, storage.Key{Partition: p.id}, attrs); err != nil {
			return err
		}

		for i, comment := range p.comments {
			reviewID := uuid.NewString()
			err := backend.Put(ctx, storage.KindReview, storage.Key{Partition: p.id, Sort: reviewID}, storage.Attributes{
				"product_id": p.id,
				"review_id":  reviewID,
				"rating":     decimal.NewFromInt(p.ratings[i]),
				"comment":    comment,
			})
			if err != nil {
				return err
			}
		}

		if p.location != "" {
			err := backend.Put(ctx, storage.KindInventory, storage.Key{Partition: p.id}, storage.Attributes{
				"product_id":         p.id,
				"quantity_available": decimal.NewFromInt(p.quantity),
				"location":           p.location,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
