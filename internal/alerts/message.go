package alerts

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/vmarinoff/firealert/internal/firms"
)

// message carries one notification's rendering for every channel.
type message struct {
	subject string
	html    string
	text    string
	sms     string
}

func reportMessage(sub *Subscription, r *FireReport, distM float64, baseURL string) message {
	title := r.Title
	if title == "" {
		title = "Confirmed fire report"
	}
	dist := formatDistance(distM)

	subject := fmt.Sprintf("Fire alert: %s (%s away)", title, dist)
	text := fmt.Sprintf(
		"A confirmed fire has been reported %s from your alert location.\n\n"+
			"%s\nLocation: %.5f, %.5f\n\nStay safe and follow official guidance.",
		dist, title, r.Lat, r.Lng)

	var b strings.Builder
	emailHeader(&b, "Confirmed fire near you")
	fmt.Fprintf(&b, "<p><strong>%s</strong> was reported %s from your alert location.</p>\n",
		html.EscapeString(title), dist)
	fmt.Fprintf(&b, "<p>Location: %.5f, %.5f</p>\n", r.Lat, r.Lng)
	emailFooter(&b, sub, baseURL)

	return message{
		subject: subject,
		html:    b.String(),
		text:    text,
		sms:     fmt.Sprintf("FireAlert: confirmed fire %s away. %s. Location %.4f,%.4f", dist, title, r.Lat, r.Lng),
	}
}

func hotspotMessage(sub *Subscription, h *firms.Hotspot, distM float64, baseURL string) message {
	dist := formatDistance(distM)

	subject := fmt.Sprintf("Satellite fire detection %s from your location", dist)
	text := fmt.Sprintf(
		"Satellites detected fire activity %s from your alert location.\n\n"+
			"Detections: %d\nTotal fire radiative power: %.1f MW\nConfidence: %.0f%%\n"+
			"Location: %.5f, %.5f\n\nThis is an automated satellite detection, not a confirmed report.",
		dist, h.Count, h.FRPTotal, h.Confidence, h.Center.Lat, h.Center.Lng)

	var b strings.Builder
	emailHeader(&b, "Satellite fire detection near you")
	fmt.Fprintf(&b, "<p>Satellites detected fire activity <strong>%s</strong> from your alert location.</p>\n", dist)
	fmt.Fprintf(&b, "<ul>\n<li>Detections: %d</li>\n<li>Total FRP: %.1f MW</li>\n<li>Confidence: %.0f%%</li>\n<li>Location: %.5f, %.5f</li>\n</ul>\n",
		h.Count, h.FRPTotal, h.Confidence, h.Center.Lat, h.Center.Lng)
	b.WriteString("<p>This is an automated satellite detection, not a confirmed report.</p>\n")
	emailFooter(&b, sub, baseURL)

	return message{
		subject: subject,
		html:    b.String(),
		text:    text,
		sms: fmt.Sprintf("FireAlert: satellite fire detection %s away (%d detections, conf %.0f%%). Location %.4f,%.4f",
			dist, h.Count, h.Confidence, h.Center.Lat, h.Center.Lng),
	}
}

func emailHeader(b *strings.Builder, heading string) {
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"></head>\n<body style=\"font-family:sans-serif;max-width:600px;margin:0 auto;padding:16px\">\n")
	fmt.Fprintf(b, "<h2 style=\"border-bottom:2px solid #d35400;padding-bottom:8px\">%s</h2>\n", html.EscapeString(heading))
}

func emailFooter(b *strings.Builder, sub *Subscription, baseURL string) {
	b.WriteString("<p style=\"color:#7f8c8d;font-size:0.9em;border-top:1px solid #ecf0f1;margin-top:24px;padding-top:8px\">\n")
	fmt.Fprintf(b, "You receive these alerts for a %.0f km radius around %.4f, %.4f.\n", sub.RadiusKm, sub.Lat, sub.Lng)
	if baseURL != "" && sub.UnsubscribeToken != "" {
		unsub := fmt.Sprintf("%s/api/v1/unsubscribe?token=%s", baseURL, url.QueryEscape(sub.UnsubscribeToken))
		fmt.Fprintf(b, "<br><a href=\"%s\">Unsubscribe</a>\n", html.EscapeString(unsub))
	}
	b.WriteString("</p>\n</body>\n</html>")
}

func formatDistance(distM float64) string {
	if distM < 1000 {
		return fmt.Sprintf("%.0f m", distM)
	}
	return fmt.Sprintf("%.1f km", distM/1000)
}
