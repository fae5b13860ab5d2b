package exchange

import (
	"context"
	"sync"

	"github.com/StudioSol/set"
	"github.com/raykavin/trailstop/core"
)

// PriceFeedConsumer is a function type that processes price ticks
type PriceFeedConsumer func(core.PriceTick)

// PriceFeed represents a live price feed with channels for ticks and errors
type PriceFeed struct {
	Data chan core.PriceTick
	Err  chan error
}

// PriceFeedSubscription manages consumer subscriptions to live price feeds.
// Each pair gets a single upstream subscription fanned out to every consumer.
type PriceFeedSubscription struct {
	exchange            core.Exchange
	feeds               *set.LinkedHashSetString
	priceFeeds          map[string]*PriceFeed
	subscriptionsByPair map[string][]PriceFeedConsumer
	log                 core.Logger
	mu                  sync.RWMutex
}

// NewPriceFeed creates a new instance of PriceFeedSubscription
func NewPriceFeed(exchange core.Exchange, log core.Logger) *PriceFeedSubscription {
	return &PriceFeedSubscription{
		exchange:            exchange,
		feeds:               set.NewLinkedHashSetString(),
		log:                 log,
		priceFeeds:          make(map[string]*PriceFeed),
		subscriptionsByPair: make(map[string][]PriceFeedConsumer),
	}
}

// Subscribe adds a new consumer for a pair
func (p *PriceFeedSubscription) Subscribe(pair string, consumer PriceFeedConsumer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.feeds.Add(pair)
	p.subscriptionsByPair[pair] = append(p.subscriptionsByPair[pair], consumer)
}

// Connect establishes the upstream subscriptions for every registered pair
func (p *PriceFeedSubscription) Connect(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.Info("Connecting to the exchange price stream.")

	for pair := range p.feeds.Iter() {
		tickChan, errChan := p.exchange.PriceSubscription(ctx, pair)
		p.priceFeeds[pair] = &PriceFeed{
			Data: tickChan,
			Err:  errChan,
		}
	}
}

// Start begins processing all feeds
func (p *PriceFeedSubscription) Start(ctx context.Context, waitForCompletion bool) {
	p.Connect(ctx)

	var wg sync.WaitGroup

	p.mu.RLock()
	for pair, feed := range p.priceFeeds {
		wg.Add(1)
		go p.processFeed(ctx, pair, feed, &wg)
	}
	p.mu.RUnlock()

	p.log.Info("Price feed connected.")

	if waitForCompletion {
		wg.Wait()
	}
}

func (p *PriceFeedSubscription) processFeed(ctx context.Context, pair string, feed *PriceFeed, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case tick, ok := <-feed.Data:
			if !ok {
				return
			}

			p.processTick(pair, tick)

		case err, ok := <-feed.Err:
			if !ok {
				return
			}

			if err != nil {
				p.log.Error("priceFeedSubscription/processFeed: ", err)
			}
		}
	}
}

// processTick sends a tick to all subscribed consumers
func (p *PriceFeedSubscription) processTick(pair string, tick core.PriceTick) {
	p.mu.RLock()
	consumers := p.subscriptionsByPair[pair]
	p.mu.RUnlock()

	for _, consumer := range consumers {
		consumer(tick)
	}
}
