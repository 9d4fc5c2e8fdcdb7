package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Rank - уровень лояльности покупателя.
type Rank string

const (
	RankIron     Rank = "iron"
	RankBronze   Rank = "bronze"
	RankSilver   Rank = "silver"
	RankGold     Rank = "gold"
	RankPlatinum Rank = "platinum"
)

// RankTier описывает одну ступень таблицы рангов.
type RankTier struct {
	Rank         Rank
	MinSpend     decimal.Decimal
	BonusPercent int
}

// RankTable - неизменяемая таблица рангов, отсортированная по возрастанию порога.
// Нижняя ступень всегда начинается с нуля, поэтому RankFor определён для любой суммы.
type RankTable struct {
	tiers []RankTier
}

// DefaultRankTable возвращает боевую таблицу рангов.
func DefaultRankTable() RankTable {
	table, err := NewRankTable([]RankTier{
		{Rank: RankIron, MinSpend: decimal.Zero, BonusPercent: 0},
		{Rank: RankBronze, MinSpend: decimal.NewFromInt(20_000_000), BonusPercent: 5},
		{Rank: RankSilver, MinSpend: decimal.NewFromInt(50_000_000), BonusPercent: 10},
		{Rank: RankGold, MinSpend: decimal.NewFromInt(100_000_000), BonusPercent: 15},
		{Rank: RankPlatinum, MinSpend: decimal.NewFromInt(500_000_000), BonusPercent: 20},
	})
	if err != nil {
		panic(err)
	}
	return table
}

// NewRankTable проверяет ступени и строит таблицу.
func NewRankTable(tiers []RankTier) (RankTable, error) {
	if len(tiers) == 0 {
		return RankTable{}, fmt.Errorf("%w: no tiers", ErrInvalidRankTable)
	}
	// пороги сравниваются уже в копейках: 0 и 0.001 - один и тот же порог
	if !RoundMoney(tiers[0].MinSpend).IsZero() {
		return RankTable{}, fmt.Errorf("%w: lowest tier must start at zero", ErrInvalidRankTable)
	}

	seen := make(map[Rank]struct{}, len(tiers))
	copied := make([]RankTier, 0, len(tiers))
	for i, tier := range tiers {
		if strings.TrimSpace(string(tier.Rank)) == "" {
			return RankTable{}, fmt.Errorf("%w: tier %d has empty rank", ErrInvalidRankTable, i)
		}
		if _, dup := seen[tier.Rank]; dup {
			return RankTable{}, fmt.Errorf("%w: duplicate rank %q", ErrInvalidRankTable, tier.Rank)
		}
		seen[tier.Rank] = struct{}{}

		if tier.BonusPercent < 0 || tier.BonusPercent > 100 {
			return RankTable{}, fmt.Errorf("%w: bonus of %q must be within 0..100", ErrInvalidRankTable, tier.Rank)
		}
		minSpend := RoundMoney(tier.MinSpend)
		if i > 0 && !minSpend.GreaterThan(copied[i-1].MinSpend) {
			return RankTable{}, fmt.Errorf("%w: thresholds must be strictly ascending at %q", ErrInvalidRankTable, tier.Rank)
		}
		copied = append(copied, RankTier{
			Rank:         tier.Rank,
			MinSpend:     minSpend,
			BonusPercent: tier.BonusPercent,
		})
	}

	return RankTable{tiers: copied}, nil
}

// ParseRankTable разбирает описание вида "iron:0:0,bronze:20000000:5".
func ParseRankTable(raw string) (RankTable, error) {
	parts := strings.Split(raw, ",")
	tiers := make([]RankTier, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return RankTable{}, fmt.Errorf("%w: tier %q must look like name:min_spend:bonus", ErrInvalidRankTable, part)
		}
		minSpend, err := decimal.NewFromString(strings.TrimSpace(fields[1]))
		if err != nil {
			return RankTable{}, fmt.Errorf("%w: min spend of %q: %v", ErrInvalidRankTable, part, err)
		}
		bonus, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return RankTable{}, fmt.Errorf("%w: bonus of %q: %v", ErrInvalidRankTable, part, err)
		}
		tiers = append(tiers, RankTier{
			Rank:         Rank(strings.ToLower(strings.TrimSpace(fields[0]))),
			MinSpend:     minSpend,
			BonusPercent: bonus,
		})
	}
	return NewRankTable(tiers)
}

// Tiers возвращает копию ступеней.
func (t RankTable) Tiers() []RankTier {
	return append([]RankTier(nil), t.tiers...)
}

// RankFor выбирает ступень с наибольшим порогом, не превышающим spend.
func (t RankTable) RankFor(spend decimal.Decimal) RankTier {
	if len(t.tiers) == 0 {
		return RankTier{Rank: RankIron}
	}
	selected := t.tiers[0]
	for _, tier := range t.tiers[1:] {
		if tier.MinSpend.GreaterThan(spend) {
			break
		}
		selected = tier
	}
	return selected
}

// BonusFor возвращает процент скидки для ранга, если ранг есть в таблице.
func (t RankTable) BonusFor(rank Rank) (int, bool) {
	for _, tier := range t.tiers {
		if tier.Rank == rank {
			return tier.BonusPercent, true
		}
	}
	return 0, false
}

// Lowest возвращает базовую ступень таблицы.
func (t RankTable) Lowest() RankTier {
	if len(t.tiers) == 0 {
		return RankTier{Rank: RankIron}
	}
	return t.tiers[0]
}
