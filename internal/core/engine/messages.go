package engine

import (
	"fmt"
	"time"

	"microfin-loans/internal/core/domain"

	"github.com/shopspring/decimal"
)

const dateLayout = "January 2, 2006"

// LoanSummary carries the loan fields message templates interpolate
type LoanSummary struct {
	Reference   string
	Principal   decimal.Decimal
	Installment decimal.Decimal
	TenorMonths int
	ReleaseDate *time.Time
	Remark      string
}

// Message is a borrower-facing notification body
type Message struct {
	Type  string
	Title string
	Body  string
}

// SubmittedMessage is sent once when an application is created.
func SubmittedMessage(l LoanSummary) Message {
	return Message{
		Type:  domain.NotificationLoanSubmitted,
		Title: "Loan Application Submitted",
		Body: fmt.Sprintf("Your loan application %s for %s over %d months has been received. "+
			"We will notify you once it is reviewed.", l.Reference, FormatAmount(l.Principal), l.TenorMonths),
	}
}

// StatusMessage renders the notification for a loan entering status. Every
// target status has exactly one template.
func StatusMessage(status domain.LoanStatus, l LoanSummary) Message {
	m := Message{Type: domain.NotificationLoanStatusChanged}

	switch status {
	case domain.LoanStatusUnderReview:
		m.Title = "Application Under Review"
		m.Body = fmt.Sprintf("Your loan application %s is now being reviewed by our loan officers.", l.Reference)
	case domain.LoanStatusApproved:
		m.Title = "Loan Approved!"
		m.Body = fmt.Sprintf("Congratulations! Your loan %s for %s has been approved and will be processed for release.",
			l.Reference, FormatAmount(l.Principal))
	case domain.LoanStatusForRelease:
		m.Title = "Loan Ready for Release"
		m.Body = fmt.Sprintf("Your loan %s is ready for release. Please wait for the disbursement schedule.", l.Reference)
	case domain.LoanStatusDisbursed:
		released := "today"
		if l.ReleaseDate != nil {
			released = "on " + l.ReleaseDate.Format(dateLayout)
		}
		m.Title = "Loan Disbursed"
		m.Body = fmt.Sprintf("Your loan %s amounting to %s was released %s. Your monthly installment is %s.",
			l.Reference, FormatAmount(l.Principal), released, FormatAmount(l.Installment))
	case domain.LoanStatusClosed:
		m.Title = "Loan Fully Paid"
		m.Body = fmt.Sprintf("Your loan %s has been fully paid and is now closed. Thank you!", l.Reference)
	case domain.LoanStatusRejected:
		m.Title = "Loan Application Rejected"
		m.Body = fmt.Sprintf("We are sorry, your loan application %s was not approved.", l.Reference)
		if l.Remark != "" {
			m.Body += " Reason: " + l.Remark
		}
	case domain.LoanStatusCancelled:
		m.Title = "Loan Cancelled"
		m.Body = fmt.Sprintf("Your loan %s has been cancelled.", l.Reference)
	case domain.LoanStatusRestructured:
		m.Title = "Loan Restructured"
		m.Body = fmt.Sprintf("Your loan %s has been restructured. Please contact your loan officer for the new terms.", l.Reference)
	default:
		m.Title = "Loan Status Updated"
		m.Body = fmt.Sprintf("Your loan %s is now %s.", l.Reference, status.Label())
	}
	return m
}

// PaymentApprovedMessage confirms a posted payment.
func PaymentApprovedMessage(reference string, amount decimal.Decimal) Message {
	return Message{
		Type:  domain.NotificationPaymentApproved,
		Title: "Payment Approved",
		Body:  fmt.Sprintf("Your payment of %s for loan %s has been approved.", FormatAmount(amount), reference),
	}
}

// PaymentRejectedMessage explains a refused payment.
func PaymentRejectedMessage(reference string, amount decimal.Decimal, reason string) Message {
	body := fmt.Sprintf("Your payment of %s for loan %s was rejected.", FormatAmount(amount), reference)
	if reason != "" {
		body += " Reason: " + reason
	}
	return Message{Type: domain.NotificationPaymentRejected, Title: "Payment Rejected", Body: body}
}

// PaymentReminderMessage warns about an upcoming due date.
func PaymentReminderMessage(reference string, amount decimal.Decimal, due time.Time) Message {
	return Message{
		Type:  domain.NotificationPaymentReminder,
		Title: "Payment Reminder",
		Body: fmt.Sprintf("Your installment of %s for loan %s is due on %s.",
			FormatAmount(amount), reference, due.Format(dateLayout)),
	}
}

// PenaltyAppliedMessage reports a penalty posted on an overdue installment.
func PenaltyAppliedMessage(reference string, penalty decimal.Decimal, daysOverdue int) Message {
	return Message{
		Type:  domain.NotificationPenaltyApplied,
		Title: "Penalty Applied",
		Body: fmt.Sprintf("A penalty of %s was applied to loan %s for an installment %d day(s) overdue.",
			FormatAmount(penalty), reference, daysOverdue),
	}
}
