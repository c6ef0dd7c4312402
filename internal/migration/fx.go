package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/aruspay/aruspay/internal/config"
	ledgerdomain "github.com/aruspay/aruspay/internal/ledger/domain"
	merchantdomain "github.com/aruspay/aruspay/internal/merchant/domain"
	paymentdomain "github.com/aruspay/aruspay/internal/payment/domain"

	"github.com/aruspay/aruspay/internal/idempotency"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Versioned SQL migrations target postgres. Other dialects are for
		// local development, where the model-derived schema is enough.
		return conn.AutoMigrate(
			&merchantdomain.Merchant{},
			&merchantdomain.BankAccount{},
			&paymentdomain.PaymentRequest{},
			&paymentdomain.ProviderPayment{},
			&paymentdomain.ProviderDisbursement{},
			&paymentdomain.WebhookLog{},
			&ledgerdomain.LedgerEntry{},
			&idempotency.Record{},
		)
	}),
)
