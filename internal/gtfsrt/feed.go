package gtfsrt

import (
	"fmt"
	"strings"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/regiorail/horaires/internal/perturbation"
)

// ContentType is served with encoded feeds
const ContentType = "application/x-protobuf"

// CauseMap maps free-text override causes to GTFS-RT Cause values
var CauseMap = map[string]gtfs.Alert_Cause{
	"technical_problem":  gtfs.Alert_TECHNICAL_PROBLEM,
	"incident_technique": gtfs.Alert_TECHNICAL_PROBLEM,
	"strike":             gtfs.Alert_STRIKE,
	"greve":              gtfs.Alert_STRIKE,
	"grève":              gtfs.Alert_STRIKE,
	"demonstration":      gtfs.Alert_DEMONSTRATION,
	"accident":           gtfs.Alert_ACCIDENT,
	"holiday":            gtfs.Alert_HOLIDAY,
	"weather":            gtfs.Alert_WEATHER,
	"meteo":              gtfs.Alert_WEATHER,
	"météo":              gtfs.Alert_WEATHER,
	"maintenance":        gtfs.Alert_MAINTENANCE,
	"construction":       gtfs.Alert_CONSTRUCTION,
	"travaux":            gtfs.Alert_CONSTRUCTION,
	"police_activity":    gtfs.Alert_POLICE_ACTIVITY,
	"medical_emergency":  gtfs.Alert_MEDICAL_EMERGENCY,
}

// Cause resolves an override cause, falling back to UNKNOWN_CAUSE
func Cause(s string) gtfs.Alert_Cause {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	if c, ok := CauseMap[key]; ok {
		return c
	}
	return gtfs.Alert_UNKNOWN_CAUSE
}

// StartDate renders an ISO date as the GTFS YYYYMMDD form
func StartDate(iso string) string {
	return strings.ReplaceAll(iso, "-", "")
}

// BuildFeed encodes perturbed occurrences as a full-dataset feed. Delays and
// cancellations become trip updates; reroutes become DETOUR alerts. Occurrences
// without an override are skipped.
func BuildFeed(occurrences []perturbation.EnrichedOccurrence, at time.Time) *gtfs.FeedMessage {
	incrementality := gtfs.FeedHeader_FULL_DATASET
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(uint64(at.Unix())),
		},
		Entity: make([]*gtfs.FeedEntity, 0, len(occurrences)),
	}

	for _, occ := range occurrences {
		if !occ.Perturbed {
			continue
		}
		id := entityID(occ)
		trip := &gtfs.TripDescriptor{
			TripId:    proto.String(occ.ScheduleID),
			StartDate: proto.String(StartDate(occ.Date)),
		}

		switch occ.Classification {
		case perturbation.KindCancel.Classification():
			rel := gtfs.TripDescriptor_CANCELED
			trip.ScheduleRelationship = &rel
			feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
				Id:         proto.String(id),
				TripUpdate: &gtfs.TripUpdate{Trip: trip, Timestamp: proto.Uint64(uint64(at.Unix()))},
			})
		case perturbation.KindDelay.Classification():
			rel := gtfs.TripDescriptor_SCHEDULED
			trip.ScheduleRelationship = &rel
			feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
				Id: proto.String(id),
				TripUpdate: &gtfs.TripUpdate{
					Trip:      trip,
					Delay:     proto.Int32(int32(occ.DelayMinutes * 60)),
					Timestamp: proto.Uint64(uint64(at.Unix())),
				},
			})
		case perturbation.KindReroute.Classification():
			cause := Cause(occ.Cause)
			effect := gtfs.Alert_DETOUR
			feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
				Id: proto.String(id),
				Alert: &gtfs.Alert{
					InformedEntity:  []*gtfs.EntitySelector{{Trip: trip}},
					Cause:           &cause,
					Effect:          &effect,
					HeaderText:      translated(occ.Message),
					DescriptionText: translated(rerouteDescription(occ)),
				},
			})
		}
	}
	return feed
}

// Marshal serialises a feed in the protobuf wire format
func Marshal(feed *gtfs.FeedMessage) ([]byte, error) {
	b, err := proto.Marshal(feed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode feed: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a protobuf feed
func Unmarshal(b []byte) (*gtfs.FeedMessage, error) {
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(b, feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return feed, nil
}

func entityID(occ perturbation.EnrichedOccurrence) string {
	return occ.ScheduleID + ":" + StartDate(occ.Date)
}

func translated(text string) *gtfs.TranslatedString {
	if text == "" {
		return nil
	}
	return &gtfs.TranslatedString{
		Translation: []*gtfs.TranslatedString_Translation{{
			Text:     proto.String(text),
			Language: proto.String("fr"),
		}},
	}
}

func rerouteDescription(occ perturbation.EnrichedOccurrence) string {
	if occ.Reroute == nil || len(occ.Reroute.Stops) == 0 {
		return ""
	}
	names := make([]string, 0, len(occ.Reroute.Stops))
	for _, s := range occ.Reroute.Stops {
		names = append(names, s.StationName)
	}
	return strings.Join(names, " > ")
}
