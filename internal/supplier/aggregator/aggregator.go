// Package aggregator fans a room search out to every configured supplier in
// parallel and merges the results into price-sorted hotel groups.
package aggregator

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/supplier"
)

const DefaultSearchTimeout = 25 * time.Second

// Query addresses one logical hotel search. Criteria carries the
// supplier-specific hotel code per supplier name; suppliers without an entry
// are not queried.
type Query struct {
	Criteria map[string]supplier.SearchCriteria
	// BestPriceOnly keeps only the cheapest room per hotel group instead of
	// the union of all rooms.
	BestPriceOnly bool
}

// SupplierResult is the outcome of one supplier's search, failure included.
type SupplierResult struct {
	Supplier string
	Offers   []supplier.RoomOffer
	Err      error
	Elapsed  time.Duration
}

// HotelGroup is one supplier-agnostic hotel with the rooms found for it.
type HotelGroup struct {
	Key       string
	HotelName string
	Suppliers []string
	Rooms     []supplier.RoomOffer
}

// MinPrice is the cheapest room in the group, +Inf when the group is empty so
// empty groups sort last.
func (g HotelGroup) MinPrice() float64 {
	if len(g.Rooms) == 0 {
		return math.Inf(1)
	}
	return lo.MinBy(g.Rooms, func(a, b supplier.RoomOffer) bool {
		return a.Price < b.Price
	}).Price
}

type Result struct {
	PerSupplier []SupplierResult
	Groups      []HotelGroup
	// BestPrice is the single cheapest room across all groups, nil when no
	// supplier returned anything.
	BestPrice *supplier.RoomOffer
}

type Aggregator struct {
	registry *supplier.Registry
	timeout  time.Duration
	log      *zap.Logger
}

func New(registry *supplier.Registry, timeout time.Duration, log *zap.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	return &Aggregator{
		registry: registry,
		timeout:  timeout,
		log:      log.Named("supplier.aggregator"),
	}
}

// Search queries every addressed supplier concurrently. Each supplier runs
// under its own timeout; a failure or timeout yields a failed SupplierResult
// for that supplier only and never fails the aggregate call. The barrier is
// all-complete, not fail-fast.
func (a *Aggregator) Search(ctx context.Context, query Query) Result {
	clients := a.registry.All()

	results := make([]SupplierResult, 0, len(clients))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, client := range clients {
		criteria, ok := query.Criteria[client.Name()]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(client supplier.Client, criteria supplier.SearchCriteria) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			started := time.Now()
			offers, err := client.Search(callCtx, criteria)
			elapsed := time.Since(started)

			if err != nil {
				a.log.Warn("supplier search failed",
					zap.String("supplier", client.Name()),
					zap.Duration("elapsed", elapsed),
					zap.Error(err),
				)
			}

			mu.Lock()
			results = append(results, SupplierResult{
				Supplier: client.Name(),
				Offers:   offers,
				Err:      err,
				Elapsed:  elapsed,
			})
			mu.Unlock()
		}(client, criteria)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Supplier < results[j].Supplier
	})

	groups := a.merge(results, query.BestPriceOnly)
	return Result{
		PerSupplier: results,
		Groups:      groups,
		BestPrice:   bestPrice(groups),
	}
}

func (a *Aggregator) merge(results []SupplierResult, bestPriceOnly bool) []HotelGroup {
	offers := lo.FlatMap(results, func(result SupplierResult, _ int) []supplier.RoomOffer {
		return result.Offers
	})

	byHotel := lo.GroupBy(offers, func(offer supplier.RoomOffer) string {
		return hotelKey(offer)
	})

	groups := make([]HotelGroup, 0, len(byHotel))
	for key, rooms := range byHotel {
		group := HotelGroup{
			Key:       key,
			HotelName: rooms[0].HotelName,
			Suppliers: lo.Uniq(lo.Map(rooms, func(offer supplier.RoomOffer, _ int) string {
				return offer.Supplier
			})),
		}
		sort.Strings(group.Suppliers)

		if bestPriceOnly {
			cheapest := lo.MinBy(rooms, func(a, b supplier.RoomOffer) bool {
				return a.Price < b.Price
			})
			group.Rooms = []supplier.RoomOffer{cheapest}
		} else {
			group.Rooms = rooms
			sort.SliceStable(group.Rooms, func(i, j int) bool {
				return group.Rooms[i].Price < group.Rooms[j].Price
			})
		}
		groups = append(groups, group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].MinPrice() < groups[j].MinPrice()
	})
	return groups
}

func bestPrice(groups []HotelGroup) *supplier.RoomOffer {
	var best *supplier.RoomOffer
	for i := range groups {
		for j := range groups[i].Rooms {
			room := &groups[i].Rooms[j]
			if best == nil || room.Price < best.Price {
				best = room
			}
		}
	}
	if best == nil {
		return nil
	}
	found := *best
	return &found
}

// hotelKey is the supplier-agnostic hotel identity: the normalized hotel
// name, falling back to the supplier-scoped code when the name is missing.
func hotelKey(offer supplier.RoomOffer) string {
	name := strings.ToLower(strings.TrimSpace(offer.HotelName))
	if name != "" {
		return name
	}
	return offer.Supplier + ":" + offer.HotelCode
}
