package customers

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service управляет профилем покупателя, накоплениями и блокировкой аккаунта.
type Service struct {
	tx        domain.TxManager
	customers domain.CustomerRepository
	outbox    domain.OutboxRepository
	ranks     domain.RankTable
	clock     clock.Clock
	logger    *log.Entry
}

// NewService собирает сервис покупателей.
func NewService(
	tx domain.TxManager,
	customers domain.CustomerRepository,
	outbox domain.OutboxRepository,
	ranks domain.RankTable,
	clk clock.Clock,
	logger *log.Entry,
) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = log.New().WithField("component", "customer-service")
	}
	return &Service{
		tx:        tx,
		customers: customers,
		outbox:    outbox,
		ranks:     ranks,
		clock:     clk,
		logger:    logger,
	}
}

// RegisterInput - данные учётной записи, пришедшие от сервиса аккаунтов.
type RegisterInput struct {
	Email   string
	Name    string
	Phone   string
	Address string
}

// Register заводит покупателя с нулевыми накоплениями и начальным рангом.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return domain.Customer{}, domain.ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrInvalidEmail, email)
	}

	return s.customers.Create(ctx, domain.Customer{
		Email:         email,
		Name:          strings.TrimSpace(in.Name),
		Phone:         strings.TrimSpace(in.Phone),
		Address:       strings.TrimSpace(in.Address),
		LifetimeSpend: decimal.Zero,
		Rank:          s.ranks.Lowest().Rank,
		Active:        true,
		UpdatedAt:     s.clock.Now(),
	})
}

// Profile возвращает покупателя.
func (s *Service) Profile(ctx context.Context, id int64) (domain.Customer, error) {
	return s.customers.Get(ctx, id)
}

// ProfileUpdate - частичное изменение профиля; nil означает «не менять».
type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *string
}

func (u ProfileUpdate) empty() bool {
	return u.Name == nil && u.Phone == nil && u.Address == nil
}

// UpdateProfile меняет имя, телефон и адрес покупателя. Email, накопления,
// ранг и статус через профиль не меняются.
func (s *Service) UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (domain.Customer, error) {
	if update.empty() {
		return domain.Customer{}, domain.ErrNothingToUpdate
	}

	var updated domain.Customer
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		customer, err := s.customers.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		for _, field := range []struct {
			value *string
			dst   *string
		}{
			{update.Name, &customer.Name},
			{update.Phone, &customer.Phone},
			{update.Address, &customer.Address},
		} {
			if field.value != nil {
				*field.dst = strings.TrimSpace(*field.value)
			}
		}

		now := s.clock.Now()
		if err := s.customers.UpdateProfile(ctx, id, customer.Name, customer.Phone, customer.Address, now); err != nil {
			return err
		}
		customer.UpdatedAt = now
		updated = customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return updated, nil
}

// SetActive блокирует или разблокирует аккаунт. Блокировка активного аккаунта
// ставит уведомление в outbox в той же транзакции.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (domain.Customer, error) {
	var updated domain.Customer
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		customer, err := s.customers.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if customer.Active && !active {
			msg, err := domain.NewOutboxMessage(domain.AggregateCustomer, customer.ID, domain.EventNotifyAccountLocked,
				domain.AccountLockedNotice{CustomerID: customer.ID, Email: customer.Email, LockedAt: now}, now)
			if err != nil {
				return err
			}
			if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
				return fmt.Errorf("enqueue account locked notice: %w", err)
			}
		}

		if err := s.customers.SetActive(ctx, id, active, now); err != nil {
			return err
		}
		customer.Active = active
		customer.UpdatedAt = now
		updated = customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logger.WithFields(log.Fields{"customer_id": id, "active": active}).Info("customer status changed")
	return updated, nil
}

// ApplyFulfillment прибавляет сумму выполненного заказа к накоплениям и пересчитывает ранг.
// Должен вызываться внутри транзакции перехода: строка покупателя блокируется до её конца.
func (s *Service) ApplyFulfillment(ctx context.Context, customerID int64, amount decimal.Decimal) (decimal.Decimal, domain.Rank, error) {
	if amount.IsNegative() {
		return decimal.Decimal{}, "", fmt.Errorf("%w: fulfillment amount %s", domain.ErrInvalidPrice, domain.FormatMoney(amount))
	}

	customer, err := s.customers.GetForUpdate(ctx, customerID)
	if err != nil {
		return decimal.Decimal{}, "", err
	}

	customer.Accrue(amount, s.ranks)
	if err := s.customers.SaveSpendAndRank(ctx, customerID, customer.LifetimeSpend, customer.Rank, s.clock.Now()); err != nil {
		return decimal.Decimal{}, "", err
	}
	return customer.LifetimeSpend, customer.Rank, nil
}
