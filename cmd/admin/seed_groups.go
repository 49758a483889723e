package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage/postgres"
)

type seedMember struct {
	UserID        string `yaml:"user_id"`
	WalletAddress string `yaml:"wallet_address"`
	PayoutOrder   int64  `yaml:"payout_order"`
}

type seedGroup struct {
	ID              string       `yaml:"id"`
	ContractAddress string       `yaml:"contract_address"`
	ChainID         string       `yaml:"chain_id"`
	CurrentRound    int64        `yaml:"current_round"`
	Status          string       `yaml:"status"`
	Members         []seedMember `yaml:"members"`
}

type seedFile struct {
	Groups []seedGroup `yaml:"groups"`
}

func main() {
	path := flag.String("file", "scripts/seed_groups.yaml", "Groups and memberships to load")
	flag.Parse()

	_ = godotenv.Load()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set")
		os.Exit(1)
	}

	content, err := os.ReadFile(*path)
	if err != nil {
		panic(err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(content, &seed); err != nil {
		panic(err)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, postgres.Config{URL: url})
	if err != nil {
		panic(err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		panic(err)
	}

	proj := postgres.NewProjection(db)
	var members int
	for _, g := range seed.Groups {
		group := domain.Group{
			ID:              g.ID,
			ContractAddress: g.ContractAddress,
			ChainID:         g.ChainID,
			CurrentRound:    g.CurrentRound,
			Status:          domain.GroupStatus(g.Status),
		}
		if group.Status == "" {
			group.Status = domain.GroupStatusPending
		}
		if group.CurrentRound == 0 {
			group.CurrentRound = 1
		}
		if err := proj.Groups.Save(ctx, &group); err != nil {
			panic(err)
		}
		for _, m := range g.Members {
			if err := proj.Memberships.Save(ctx, &domain.Membership{
				GroupID:       group.ID,
				UserID:        m.UserID,
				WalletAddress: m.WalletAddress,
				PayoutOrder:   m.PayoutOrder,
			}); err != nil {
				panic(err)
			}
			members++
		}
	}

	fmt.Printf("Successfully seeded %d groups and %d memberships from %s\n", len(seed.Groups), members, *path)
}
