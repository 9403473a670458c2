package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/odslabs/ridebot/internal/contextcache"
	"github.com/odslabs/ridebot/internal/riders"
	"github.com/odslabs/ridebot/internal/session"
)

// maxPromptInsights caps how much long-term memory enters the prompt.
const maxPromptInsights = 5

const systemPromptHeader = `You are a support assistant for delivery riders.

TOOL ROUTING:
- TRIPS/DELIVERIES: use manage_trip_state to release, cancel, or mark a trip as not delivered
- POLICIES/DOCUMENTATION: use search_documents to search the rider handbook
- BONUSES/CHALLENGES: use get_active_challenges to list active challenges
- LOCATION: use get_rider_location for the rider's current position
- ESCALATION: use escalate_to_human to hand the conversation to a person

MANDATORY CONFIRMATIONS:
- Always ask the rider for explicit confirmation before changing a trip's state
- Infer the reason for the change from the conversation instead of asking for it

RULES:
1. Answer clearly and in a friendly tone
2. Use search_documents at most once per question, then synthesize the answer
3. If you do not know something, say so and offer to escalate to a human
4. Be concise but complete`

// BuildSystemPrompt renders the system prompt with the rider's current
// operational context and the insights remembered from earlier conversations.
// Missing context degrades to "not available" wording rather than being
// omitted, so the model knows the gap exists.
func BuildSystemPrompt(snap contextcache.Snapshot, insights []session.Insight, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(systemPromptHeader)

	sb.WriteString("\n\nRIDER CONTEXT:\n")
	sb.WriteString(formatRider(snap.Rider))

	sb.WriteString("\n\nACTIVE TRIPS:\n")
	sb.WriteString(formatTrips(snap.Trips))

	sb.WriteString("\n\nACTIVE SHIFT:\n")
	sb.WriteString(formatShift(snap.Shift))

	sb.WriteString("\n\nLOCATION:\n")
	sb.WriteString(formatLocation(snap.Location))

	if len(insights) > 0 {
		sb.WriteString("\n\nREMEMBERED FROM EARLIER CONVERSATIONS:\n")
		sb.WriteString(formatInsights(insights))
	}

	sb.WriteString(fmt.Sprintf("\n\n---\nCurrent date and time: %s\n", now.Format("02/01/2006 15:04:05")))
	return sb.String()
}

func formatRider(r *riders.Rider) string {
	if r == nil {
		return "Not available"
	}
	return fmt.Sprintf("- ID: %d\n- Name: %s\n- Vehicle: %s\n- Tax condition: %s\n- Modality: %s",
		r.ID, orNA(r.FullName), orNA(r.VehicleName), orNA(r.TaxConditionName), orNA(r.Modality))
}

func formatTrips(trips []riders.Trip) string {
	if len(trips) == 0 {
		return "No active trips"
	}
	if len(trips) == 1 {
		t := trips[0]
		return fmt.Sprintf("- Trip ID: %d\n- Status: %s\n- Origin: %s\n- Destination: %s\n- Delivery distance: %.2f km",
			t.ID, orNA(t.StatusName), orNA(t.OriginAddress), orNA(t.DestAddress), t.DeliveryDistanceKm)
	}

	var parts []string
	for i, t := range trips {
		parts = append(parts, fmt.Sprintf("Trip %d (ID: %d)\n- Status: %s\n- Destination: %s",
			i+1, t.ID, orNA(t.StatusName), orNA(t.DestAddress)))
	}
	return strings.Join(parts, "\n\n")
}

func formatShift(s *riders.Shift) string {
	if s == nil {
		return "No active shift"
	}
	maxRejections := "?"
	if s.MaxRejections > 0 {
		maxRejections = fmt.Sprintf("%d", s.MaxRejections)
	}
	return fmt.Sprintf(
		"- Shift ID: %d\n- Window: %s - %s\n- Vehicle: %s\n- Delivered trips: %d\n- Rejections: %d/%s\n- Conditions met: trips=%t, rejections=%t, punctuality=%t",
		s.ID, s.From.Format("15:04"), s.Until.Format("15:04"), orNA(s.VehicleName),
		s.DeliveredTrips, s.Rejections, maxRejections,
		s.MeetsMinTrips, s.MeetsRejectionLimit, s.MeetsPunctuality)
}

func formatInsights(insights []session.Insight) string {
	if len(insights) > maxPromptInsights {
		insights = insights[:maxPromptInsights]
	}
	var lines []string
	for _, in := range insights {
		lines = append(lines, fmt.Sprintf("- [%s] %s", in.Kind, in.Content))
	}
	return strings.Join(lines, "\n")
}

func formatLocation(loc *riders.LocationFix) string {
	if loc == nil {
		return "Location not available"
	}
	return fmt.Sprintf("Lat: %.6f, Lng: %.6f (reported %s)",
		loc.Latitude, loc.Longitude, loc.Timestamp.Format(time.RFC3339))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
