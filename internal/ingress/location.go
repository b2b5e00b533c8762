// Package ingress parses incoming pub/sub payloads into the typed records
// the station supervisor and coincidence filter consume (§6), grounded on
// the original's mqtt<T>::item_collector (include/source/mqtt.h).
package ingress

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/muonpi/clusterproc/internal/geo"
	"github.com/muonpi/clusterproc/internal/messages"
)

// locationMask bits, one per key the aggregator waits for. A record is
// emitted once all six bits are set (maskComplete). A msg_id whose 5s
// window expires before that is dropped without emitting a record.
const (
	maskHeight = 1 << iota
	maskHorAcc
	maskLat
	maskLon
	maskVertAcc
	maskDOP
	maskComplete = maskHeight | maskHorAcc | maskLat | maskLon | maskVertAcc | maskDOP
)

// LocationUpdate is the aggregated record emitted by the LocationAggregator
// once all six required keys have arrived for one msg_id.
type LocationUpdate struct {
	UserInfo messages.UserInfo
	Location geo.Location
}

type locationItem struct {
	userInfo     messages.UserInfo
	location     geo.Location
	mask         int
	firstMessage time.Time
}

// LocationAggregator buffers whitespace-separated "msg_id key value [unit]"
// location fields per msg_id until all required keys have arrived; a
// partial record older than the 5-second window is discarded (§6).
type LocationAggregator struct {
	window  time.Duration
	buffer  map[string]*locationItem
}

// NewLocationAggregator creates an aggregator with the default 5-second
// aggregation window.
func NewLocationAggregator() *LocationAggregator {
	return &LocationAggregator{window: 5 * time.Second, buffer: map[string]*locationItem{}}
}

// Add ingests one location-update payload line for the given station and
// the current time, returning a completed LocationUpdate if the key set has
// just completed. An expired window never produces a LocationUpdate.
func (a *LocationAggregator) Add(now time.Time, userInfo messages.UserInfo, payload string) (LocationUpdate, bool, error) {
	fields := strings.Fields(payload)
	if len(fields) < 3 {
		return LocationUpdate{}, false, fmt.Errorf("ingress: malformed location payload %q", payload)
	}
	msgID, key, value := fields[0], fields[1], fields[2]

	item, ok := a.buffer[msgID]
	if !ok || now.Sub(item.firstMessage) > a.window {
		item = &locationItem{userInfo: userInfo, firstMessage: now}
		a.buffer[msgID] = item
	}

	v, err := strconv.ParseFloat(value, 64)
	switch key {
	case "maxGeohashLength":
		n, perr := strconv.Atoi(value)
		if perr != nil {
			return LocationUpdate{}, false, fmt.Errorf("ingress: bad maxGeohashLength %q: %w", value, perr)
		}
		item.location.MaxGeohashLength = n
		return a.maybeFinish(msgID, item)
	case "geoHeightMSL":
		if err != nil {
			return LocationUpdate{}, false, err
		}
		item.location.Height = v
		item.mask |= maskHeight
	case "geoHorAccuracy":
		if err != nil {
			return LocationUpdate{}, false, err
		}
		item.location.HorizontalAccuracy = v
		item.mask |= maskHorAcc
	case "geoLatitude":
		if err != nil {
			return LocationUpdate{}, false, err
		}
		item.location.Latitude = v
		item.mask |= maskLat
	case "geoLongitude":
		if err != nil {
			return LocationUpdate{}, false, err
		}
		item.location.Longitude = v
		item.mask |= maskLon
	case "geoVertAccuracy":
		if err != nil {
			return LocationUpdate{}, false, err
		}
		item.location.VerticalAccuracy = v
		item.mask |= maskVertAcc
	case "positionDOP":
		if err != nil {
			return LocationUpdate{}, false, err
		}
		item.location.DOP = v
		item.mask |= maskDOP
	default:
		return LocationUpdate{}, false, nil
	}
	return a.maybeFinish(msgID, item)
}

func (a *LocationAggregator) maybeFinish(msgID string, item *locationItem) (LocationUpdate, bool, error) {
	if item.mask != maskComplete {
		return LocationUpdate{}, false, nil
	}
	delete(a.buffer, msgID)
	return LocationUpdate{UserInfo: item.userInfo, Location: item.location}, true, nil
}

// Expire drops any buffered msg_id whose window has elapsed without
// completing, to be called from the ingress worker's periodic tick.
func (a *LocationAggregator) Expire(now time.Time) {
	for id, item := range a.buffer {
		if now.Sub(item.firstMessage) > a.window {
			delete(a.buffer, id)
		}
	}
}
