// Package channel builds and delivers the downstream distribution protocol:
// availability/restriction updates and rate updates, scoped to a channel
// hotel/room/rate code triple and a date range.
package channel

import (
	"encoding/xml"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

type authBlock struct {
	Username string `xml:"username"`
	Password string `xml:"password"`
}

type datesBlock struct {
	From string `xml:"from,attr"`
	To   string `xml:"to,attr"`
}

type availabilityRoom struct {
	TypeCode     string     `xml:"type,attr"`
	RatePlanCode string     `xml:"rate,attr"`
	Dates        datesBlock `xml:"dates"`
	Availability int        `xml:"availability"`
	Closed       bool       `xml:"restriction>closed"`
}

// AvailabilityMessage updates how many rooms are open for sale. Zero rooms
// with the closed restriction takes the inventory off sale.
type AvailabilityMessage struct {
	XMLName   xml.Name         `xml:"request"`
	Type      string           `xml:"type,attr"`
	Auth      authBlock        `xml:"auth"`
	HotelCode string           `xml:"hotel>code"`
	Room      availabilityRoom `xml:"room"`
}

type rateRoom struct {
	TypeCode     string     `xml:"type,attr"`
	RatePlanCode string     `xml:"rate,attr"`
	Dates        datesBlock `xml:"dates"`
	Currency     string     `xml:"price>currency"`
	Amount       string     `xml:"price>amount"`
}

// RateMessage updates the nightly sell price.
type RateMessage struct {
	XMLName   xml.Name  `xml:"request"`
	Type      string    `xml:"type,attr"`
	Auth      authBlock `xml:"auth"`
	HotelCode string    `xml:"hotel>code"`
	Room      rateRoom  `xml:"room"`
}

func buildAvailability(auth authBlock, target Target, rooms int) AvailabilityMessage {
	return AvailabilityMessage{
		Type:      "availability",
		Auth:      auth,
		HotelCode: target.Mapping.ChannelHotelCode,
		Room: availabilityRoom{
			TypeCode:     target.Mapping.RoomTypeCode,
			RatePlanCode: target.Mapping.RatePlanCode,
			Dates:        datesBlockFor(target.From, target.To),
			Availability: rooms,
			Closed:       rooms == 0,
		},
	}
}

func buildRate(auth authBlock, target Target, price float64, currency string) RateMessage {
	return RateMessage{
		Type:      "rate",
		Auth:      auth,
		HotelCode: target.Mapping.ChannelHotelCode,
		Room: rateRoom{
			TypeCode:     target.Mapping.RoomTypeCode,
			RatePlanCode: target.Mapping.RatePlanCode,
			Dates:        datesBlockFor(target.From, target.To),
			Currency:     currency,
			Amount:       fmt.Sprintf("%.2f", price),
		},
	}
}

func datesBlockFor(from, to time.Time) datesBlock {
	return datesBlock{
		From: from.Format(dateLayout),
		To:   to.Format(dateLayout),
	}
}

// channelResponse covers both response dialects the channel emits: the status
// marker can arrive as an attribute on the root or as a child element, and
// the error code as an attribute or element too. Attribute wins over element
// when both are present; this precedence is part of the protocol contract.
type channelResponse struct {
	XMLName    xml.Name `xml:"response"`
	StatusAttr string   `xml:"status,attr"`
	StatusElem string   `xml:"status"`
	Error      struct {
		CodeAttr string `xml:"code,attr"`
		CodeElem string `xml:"code"`
		Message  string `xml:",chardata"`
	} `xml:"error"`
}

func (r channelResponse) status() string {
	if r.StatusAttr != "" {
		return r.StatusAttr
	}
	return r.StatusElem
}

func (r channelResponse) errorCode() string {
	if r.Error.CodeAttr != "" {
		return r.Error.CodeAttr
	}
	return r.Error.CodeElem
}

func (r channelResponse) ok() bool { return r.status() == "ok" }

// parseResponse deserializes an inbound channel reply. A reply that is not
// well-formed XML is a protocol-level failure.
func parseResponse(body []byte) (channelResponse, error) {
	var resp channelResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return channelResponse{}, fmt.Errorf("malformed channel response: %w", err)
	}
	return resp, nil
}
