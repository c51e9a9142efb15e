package usecase

import "khabiteq-backend/model"

const DefaultStatusMessage = "Your request is being processed. Please check back shortly."

type roleMessages struct {
	buyer  string
	seller string
}

func (m roleMessages) pick(role model.Role) string {
	if role == model.RoleSeller {
		return m.seller
	}
	return m.buyer
}

var statusMessages = map[model.NegotiationStatus]roleMessages{
	model.StatusPendingInspection: {
		buyer:  "Your inspection request has been sent. Waiting for the seller to confirm the inspection date.",
		seller: "A buyer has requested an inspection. Please review and respond to the request.",
	},
	model.StatusInspectionApproved: {
		buyer:  "The seller approved your inspection. Please attend on the scheduled date and time.",
		seller: "You approved the inspection. The buyer has been notified of the schedule.",
	},
	model.StatusInspectionRescheduled: {
		buyer:  "The seller proposed a new inspection date. Please review and confirm the new schedule.",
		seller: "You proposed a new inspection date. Waiting for the buyer to confirm.",
	},
	model.StatusInspectionRejectedBySeller: {
		buyer:  "The seller declined your inspection request. You can submit a new request or explore other properties.",
		seller: "You declined this inspection request. The buyer has been notified.",
	},
	model.StatusInspectionRejectedByBuyer: {
		buyer:  "You declined the proposed inspection. The seller has been notified.",
		seller: "The buyer declined the proposed inspection. No further action is required.",
	},
	model.StatusNegotiationAccepted: {
		buyer:  "Great news! The seller has accepted your offer. You will be contacted with the next steps.",
		seller: "You have accepted the offer. The buyer has been notified.",
	},
	model.StatusNegotiationRejected: {
		buyer:  "The seller has rejected your offer. You may submit a new offer or explore other properties.",
		seller: "You have rejected the offer. The buyer has been notified.",
	},
	model.StatusNegotiationCancelled: {
		buyer:  "This negotiation was cancelled. You can start a new one from the property page.",
		seller: "This negotiation was cancelled. No further action is required.",
	},
	model.StatusCompleted: {
		buyer:  "This transaction is complete. Thank you for using Khabiteq.",
		seller: "This transaction is complete. Thank you for listing with Khabiteq.",
	},
	model.StatusCancelled: {
		buyer:  "This inspection request has been cancelled.",
		seller: "This inspection request has been cancelled by the buyer.",
	},
}

var (
	counterRespond = roleMessages{
		buyer:  "The seller has made a counter-offer. Please review it and accept, reject, or counter.",
		seller: "The buyer has made a counter-offer. Please review it and accept, reject, or counter.",
	}
	counterWaiting = roleMessages{
		buyer:  "Your counter-offer has been sent. Waiting for the seller to respond.",
		seller: "Your counter-offer has been sent. Waiting for the buyer to respond.",
	}
	counterOpen = "A counter-offer is on the table. Waiting for the next response."
)

// StatusMessage tells the viewer what happens next in a negotiation. Any role
// other than seller reads as buyer; unknown statuses get DefaultStatusMessage.
func StatusMessage(status model.NegotiationStatus, pending model.Party, role model.Role) string {
	if status == model.StatusNegotiationCountered {
		viewer := model.PartyBuyer
		if role == model.RoleSeller {
			viewer = model.PartySeller
		}
		switch pending {
		case viewer:
			return counterRespond.pick(role)
		case model.PartyBuyer, model.PartySeller:
			return counterWaiting.pick(role)
		default:
			return counterOpen
		}
	}

	msgs, ok := statusMessages[status]
	if !ok {
		return DefaultStatusMessage
	}
	return msgs.pick(role)
}
