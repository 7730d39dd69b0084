package main

import (
	"context"
	"fmt"
	"os"

	"github.com/RoyceAzure/lab/storefront/internal/config"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// 本機開發用的示範資料
func main() {
	cf, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cf.LogLevel, Pretty: true})

	if cf.StoreBackend != config.StoreBackendPostgres {
		log.Error().Str("store_backend", cf.StoreBackend).Msg("seed only applies to the postgres backend")
		os.Exit(1)
	}
	gormDB, err := db.GetDbConn(cf.DbName, cf.DbHost, cf.DbPort, cf.DbUser, cf.DbPas)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	store := db.NewUnifiedDB(gormDB, cf.LockTimeout)
	if err := store.InitMigrate(); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	if err := seed(context.Background(), store, log); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Msg("seed completed")
}

func price(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func optionPrice(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func seed(ctx context.Context, store db.UnifiedDB, log zerolog.Logger) error {
	return store.Transaction(ctx, func(tx db.UnifiedDB) error {
		members := []*model.Member{
			{Email: "alice@example.com", Name: "Alice", Point: 100000},
			{Email: "bob@example.com", Name: "Bob", Point: 500},
		}
		for _, m := range members {
			if err := tx.CreateMember(ctx, m); err != nil {
				return fmt.Errorf("create member %s: %w", m.Email, err)
			}
			addr := &model.MemberAddress{
				MemberID:  m.ID,
				Name:      m.Name,
				Phone:     "010-1234-5678",
				Address:   "123 Teheran-ro, Gangnam-gu, Seoul",
				Detail:    "5F",
				Zipcode:   "06234",
				IsDefault: true,
			}
			if err := tx.CreateAddress(ctx, addr); err != nil {
				return fmt.Errorf("create address for %s: %w", m.Email, err)
			}
			log.Info().Int64("member_id", m.ID).Int64("address_id", addr.ID).Str("email", m.Email).Msg("member seeded")
		}

		products := []*model.Product{
			{
				Name:          "Basic Tee",
				MainImg:       "/img/basic-tee.png",
				SellPrice:     price(19000),
				ConsumerPrice: price(25000),
				HasOptions:    true,
				IsShow:        true,
				Options: []model.ProductOption{
					{OptionTitle: "Size", OptionValue: "S", Stock: 5, IsShow: true},
					{OptionTitle: "Size", OptionValue: "M", Stock: 2, IsShow: true},
					{OptionTitle: "Size", OptionValue: "XL", Stock: 3, SellPrice: optionPrice(21000), IsShow: true},
				},
			},
			{
				Name:          "Canvas Tote",
				MainImg:       "/img/tote.png",
				SellPrice:     price(12000),
				ConsumerPrice: price(15000),
				Stock:         10,
				IsShow:        true,
			},
			{
				Name:          "Limited Cap",
				MainImg:       "/img/cap.png",
				SellPrice:     price(30000),
				ConsumerPrice: price(30000),
				Stock:         1,
				IsShow:        true,
			},
		}
		for _, p := range products {
			// 有選項的商品庫存為選項加總
			if p.HasOptions {
				p.Stock = 0
				for _, o := range p.Options {
					p.Stock += o.Stock
				}
			}
			if err := tx.CreateProduct(ctx, p); err != nil {
				return fmt.Errorf("create product %s: %w", p.Name, err)
			}
			log.Info().Int64("product_id", p.ID).Str("name", p.Name).Int("stock", p.Stock).Msg("product seeded")
		}
		return nil
	})
}
