package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/config"
	"github.com/diagnosis/studio-bookings/pkg/events"
	"github.com/diagnosis/studio-bookings/pkg/mailer"
)

// Renderer turns booking events into customer and back office emails.
type Renderer struct {
	studio     config.StudioConfig
	adminEmail string
	loc        *time.Location
}

func NewRenderer(studio config.StudioConfig, adminEmail string) *Renderer {
	return &Renderer{studio: studio, adminEmail: adminEmail, loc: studio.Location()}
}

func (r *Renderer) when(t time.Time) string {
	return t.In(r.loc).Format("Monday 2 January 2006, 15:04")
}

// email builds both bodies from a heading and plain paragraphs. Paragraphs are
// escaped for the HTML part; link is rendered as a button when set.
func (r *Renderer) email(to, name, subject, heading string, paragraphs []string, linkLabel, link string) mailer.Message {
	var text, body strings.Builder

	greeting := "Hello,"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}
	text.WriteString(greeting + "\n\n")
	fmt.Fprintf(&body, "<h2>%s</h2>\n<p>%s</p>\n", html.EscapeString(heading), html.EscapeString(greeting))

	for _, p := range paragraphs {
		text.WriteString(p + "\n\n")
		fmt.Fprintf(&body, "<p>%s</p>\n", html.EscapeString(p))
	}
	if link != "" {
		fmt.Fprintf(&text, "%s: %s\n\n", linkLabel, link)
		fmt.Fprintf(&body, `<p><a href="%s" style="background-color: #7A8B6F; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">%s</a></p>`+"\n",
			html.EscapeString(link), html.EscapeString(linkLabel))
	}
	text.WriteString(r.studio.Name)
	fmt.Fprintf(&body, "<p>%s</p>\n", html.EscapeString(r.studio.Name))

	return mailer.Message{
		ToEmail: to,
		ToName:  name,
		Subject: subject,
		Text:    text.String(),
		HTML:    body.String(),
	}
}

func (r *Renderer) admin(subject string, lines ...string) mailer.Message {
	return r.email(r.adminEmail, "", "["+r.studio.Name+"] "+subject, subject, lines, "", "")
}

func (r *Renderer) customerLines(ev events.ReservationEvent) []string {
	return []string{
		fmt.Sprintf("Class: %s", ev.ServiceName),
		fmt.Sprintf("When: %s", r.when(ev.StartsAt)),
		fmt.Sprintf("Reservation number: %s", ev.ReservationNumber),
	}
}

func (r *Renderer) adminLines(ev events.ReservationEvent) []string {
	lines := []string{
		fmt.Sprintf("Customer: %s <%s>", ev.CustomerName, ev.CustomerEmail),
		fmt.Sprintf("Class: %s, %s", ev.ServiceName, r.when(ev.StartsAt)),
		fmt.Sprintf("Reservation: %s (#%d, %s)", ev.ReservationNumber, ev.ReservationID, ev.ReservationType),
	}
	if ev.CustomerPhone != "" {
		lines = append(lines, "Phone: "+ev.CustomerPhone)
	}
	return lines
}

// Reservation renders the emails for a reservation.* subject. Unknown
// subjects render nothing.
func (r *Renderer) Reservation(subject string, ev events.ReservationEvent) []mailer.Message {
	lines := r.customerLines(ev)
	manage := strings.TrimRight(r.studio.PublicURL, "/") + "/reservations/" + ev.ReservationNumber

	switch subject {
	case events.ReservationCreated:
		paragraphs := append([]string{"We received your booking. It is pending until the studio confirms it."}, lines...)
		label, link := "Manage booking", manage
		if ev.CheckoutURL != "" {
			paragraphs = append(paragraphs, "Your seat is confirmed once payment goes through.")
			label, link = "Complete payment", ev.CheckoutURL
		}
		return []mailer.Message{
			r.email(ev.CustomerEmail, ev.CustomerName, "Booking received: "+ev.ServiceName, "Booking received", paragraphs, label, link),
			r.admin("New booking: "+ev.ServiceName, r.adminLines(ev)...),
		}

	case events.ReservationWaitlisted:
		pos := "on the waitlist"
		if ev.QueuePosition != nil {
			pos = fmt.Sprintf("number %d on the waitlist", *ev.QueuePosition)
		}
		paragraphs := append([]string{
			fmt.Sprintf("The class is full, so you are %s. We will email you as soon as a spot opens up.", pos),
		}, lines...)
		link := manage
		label := "Manage booking"
		if ev.CheckoutURL != "" {
			label, link = "Complete payment", ev.CheckoutURL
		}
		return []mailer.Message{
			r.email(ev.CustomerEmail, ev.CustomerName, "You're on the waitlist: "+ev.ServiceName, "You're on the waitlist", paragraphs, label, link),
			r.admin("Waitlist entry: "+ev.ServiceName, append(r.adminLines(ev), "Waitlist: "+pos)...),
		}

	case events.ReservationConfirmed:
		paragraphs := append([]string{"Your spot is confirmed. See you on the mat!"}, lines...)
		return []mailer.Message{
			r.email(ev.CustomerEmail, ev.CustomerName, "Booking confirmed: "+ev.ServiceName, "Booking confirmed", paragraphs, "Manage booking", manage),
		}

	case events.ReservationCanceled:
		head := "Your booking has been cancelled."
		if ev.CanceledBy == "studio" {
			head = "Unfortunately the studio had to cancel this class."
		}
		paragraphs := append([]string{head}, lines...)
		if ev.Reason != "" {
			paragraphs = append(paragraphs, "Reason: "+ev.Reason)
		}
		if ev.ReservationType == "pack" {
			paragraphs = append(paragraphs, "The class has been credited back to your pack.")
		}
		admin := append(r.adminLines(ev), "Cancelled by: "+ev.CanceledBy)
		if ev.Reason != "" {
			admin = append(admin, "Reason: "+ev.Reason)
		}
		return []mailer.Message{
			r.email(ev.CustomerEmail, ev.CustomerName, "Booking cancelled: "+ev.ServiceName, "Booking cancelled", paragraphs, "", ""),
			r.admin("Cancellation: "+ev.ServiceName, admin...),
		}

	case events.ReservationSeatOpened:
		paragraphs := append([]string{
			"Good news: a spot opened up and you are next on the waitlist. The studio will confirm your seat shortly.",
		}, lines...)
		return []mailer.Message{
			r.email(ev.CustomerEmail, ev.CustomerName, "A spot opened up: "+ev.ServiceName, "A spot opened up", paragraphs, "Manage booking", manage),
			r.admin("Seat opened: "+ev.ServiceName, append(r.adminLines(ev), "Next in line, ready to confirm.")...),
		}
	}
	return nil
}

func (r *Renderer) PackCreated(ev events.PackCreatedEvent) []mailer.Message {
	paragraphs := []string{
		fmt.Sprintf("Thank you for buying a %s pack of %d classes.", ev.ServiceName, ev.TotalSessions),
		fmt.Sprintf("Classes remaining: %d", ev.Remaining),
		fmt.Sprintf("Valid until: %s", ev.ExpiresAt.In(r.loc).Format("2 January 2006")),
	}
	return []mailer.Message{
		r.email(ev.CustomerEmail, ev.CustomerName, "Your "+ev.ServiceName+" pack", "Your pack is ready", paragraphs, "", ""),
		r.admin("Pack sold: "+ev.ServiceName,
			fmt.Sprintf("Customer: %s <%s>", ev.CustomerName, ev.CustomerEmail),
			fmt.Sprintf("Pack #%d, %d classes", ev.PackID, ev.TotalSessions),
		),
	}
}

func (r *Renderer) PaymentFailed(ev events.PaymentFailedEvent) []mailer.Message {
	paragraphs := []string{"We could not process your payment. Your booking is still pending; you can try again from the booking page."}
	if ev.Reason != "" {
		paragraphs = append(paragraphs, "Reason: "+ev.Reason)
	}
	return []mailer.Message{
		r.email(ev.CustomerEmail, "", "Payment failed", "Payment failed", paragraphs, "", ""),
		r.admin("Payment failed",
			fmt.Sprintf("Reservation #%d, customer %s", ev.ReservationID, ev.CustomerEmail),
			"Payment intent: "+ev.PaymentIntentID,
		),
	}
}
