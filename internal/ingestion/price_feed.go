package ingestion

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"unxcore/internal/oracle"
)

// priceUpdate is the oracle wire shape on unx.oracle.price.>.
type priceUpdate struct {
	Symbol string `json:"symbol"`
	Price  uint64 `json:"price"`
	AsOfMs uint64 `json:"as_of_ms"`
}

// SubscribePrices feeds oracle quotes into the live price table. Prices are
// latest-value data, so this rides core NATS rather than JetStream: a missed
// update is superseded by the next one.
func SubscribePrices(nc *nats.Conn, feed *oracle.Feed) (*nats.Subscription, error) {
	return nc.Subscribe("unx.oracle.price.>", func(msg *nats.Msg) {
		var u priceUpdate
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("bad price update")
			return
		}
		if u.Symbol == "" || u.Price == 0 {
			log.Warn().Str("subject", msg.Subject).Msg("empty price update")
			return
		}
		feed.Update(u.Symbol, u.Price, u.AsOfMs)
	})
}
