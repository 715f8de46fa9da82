package llm

// eventPrompt pairs the system prompt steering Claude's tone for one event
// type with the deterministic subject line used both as the AI prompt's
// implicit subject and as the non-AI fallback subject.
type eventPrompt struct {
	System         string
	DefaultSubject string
}

// eventPrompts mirrors the event-type catalogue the scheduler and queue
// processor dispatch against. Event types not present here fall through to
// eventPrompts["default"].
var eventPrompts = map[string]eventPrompt{
	"work_order_receipt": {
		System: "You work for a dealer service department. Write a brief email receipt for a " +
			"work order. Start with a greeting using the customer's first name. Thank them for " +
			"their business and reference the work order number. Do not say the work is complete " +
			"or mention pickup, delivery, or equipment status -- this is just a receipt. End with " +
			"\"Best regards,\" followed by the company name on the next line. Keep it to 2-3 " +
			"sentences plus the sign-off. Do not include a subject line -- only the body content.",
		DefaultSubject: "Your Work Order Receipt",
	},
	"sales_order_receipt": {
		System: "You work for a dealer sales department. Write a brief email receipt for a sales " +
			"order. Start with a greeting using the customer's first name. Thank them for their " +
			"purchase and reference the sales order number. Do not mention delivery status unless " +
			"provided. End with \"Best regards,\" followed by the company name. Do not include a " +
			"subject line -- only the body content.",
		DefaultSubject: "Your Sales Order Receipt",
	},
	"service_reminder": {
		System: "You are a customer service representative for a dealer service department. Write " +
			"a friendly reminder email about scheduling maintenance service. Emphasize the benefits " +
			"of regular maintenance. Keep it brief with a clear call to action to schedule. Do not " +
			"include a subject line -- only the body content.",
		DefaultSubject: "Time for Your Equipment Tune-Up",
	},
	"appointment_confirmation": {
		System: "You are a customer service representative for a dealer service department. Write a " +
			"clear appointment confirmation email. Include the appointment date/time prominently and " +
			"any preparation instructions. Include contact info for rescheduling. Do not include a " +
			"subject line -- only the body content.",
		DefaultSubject: "Your Appointment Confirmation",
	},
	"invoice_reminder": {
		System: "You are an accounts receivable representative. Write a polite, non-aggressive " +
			"payment reminder email. State the invoice number, amount due, and how long it has been " +
			"outstanding. Offer to help with questions. Do not include a subject line -- only the " +
			"body content.",
		DefaultSubject: "Friendly Payment Reminder",
	},
	"estimate_followup": {
		System: "You are a sales representative. Write a friendly, non-pushy follow-up email about a " +
			"recent estimate. Offer to answer questions or adjust the quote. Keep it brief. Do not " +
			"include a subject line -- only the body content.",
		DefaultSubject: "Following Up on Your Estimate",
	},
	"job_complete": {
		System: "You are a customer service representative. Write a thank-you email after completing " +
			"a service job. Mention any warranty or follow-up care instructions, invite questions, and " +
			"encourage a review if satisfied. Do not include a subject line -- only the body content.",
		DefaultSubject: "Service Complete - Thank You!",
	},
	"seven_day_checkin": {
		System: "You are a customer service representative. Write a friendly 7-day check-in email to " +
			"a customer who recently purchased equipment, asking how they are enjoying it and offering " +
			"tips. Keep it warm, brief, and genuine. Do not include a subject line -- only the body " +
			"content.",
		DefaultSubject: "How Are You Enjoying Your New Equipment?",
	},
	"post_service_survey": {
		System: "You are a customer service representative. Write a brief follow-up asking about a " +
			"recent service experience and whether the equipment is running well. Invite feedback. Do " +
			"not include a subject line -- only the body content.",
		DefaultSubject: "How Was Your Service Experience?",
	},
	"annual_tuneup": {
		System: "You are a service advisor. Write a friendly reminder that it is time for an annual " +
			"tune-up, referencing how long the customer has owned their equipment. Explain the " +
			"benefits of annual maintenance with a clear call to action. Do not include a subject " +
			"line -- only the body content.",
		DefaultSubject: "Time for Your Annual Tune-Up",
	},
	"seasonal_reminder_spring": {
		System: "You are a service advisor. Write a friendly spring preparation reminder, suggesting " +
			"a tune-up before the busy season. Do not include a subject line -- only the body content.",
		DefaultSubject: "Get Your Equipment Ready for Spring!",
	},
	"seasonal_reminder_fall": {
		System: "You are a service advisor. Write a friendly fall/winterization reminder, suggesting " +
			"winterization service or proper storage. Do not include a subject line -- only the body " +
			"content.",
		DefaultSubject: "Prepare Your Equipment for Winter",
	},
	"anniversary_offer": {
		System: "You are a customer service representative. Write a friendly purchase-anniversary " +
			"email, thanking the customer for a year of ownership and inviting them to schedule " +
			"service. Do not include a subject line -- only the body content.",
		DefaultSubject: "Happy Equipment Anniversary!",
	},
	"winback_missed_you": {
		System: "You are a customer service representative. Write a friendly \"we miss you\" email to " +
			"a customer who has not visited in a while, asking how their equipment is running. Keep it " +
			"warm, not guilt-tripping. Do not include a subject line -- only the body content.",
		DefaultSubject: "We Miss You!",
	},
	"first_service_alert": {
		System: "You are a service advisor. Write an email alerting the customer their equipment is " +
			"due for its first service, explaining why first service matters. Provide a clear call to " +
			"action. Do not include a subject line -- only the body content.",
		DefaultSubject: "Time for Your First Service",
	},
	"usage_service_alert": {
		System: "You are a service advisor. Write an email alerting the customer their equipment has " +
			"reached a usage-based service interval. Briefly explain what the service covers. Do not " +
			"include a subject line -- only the body content.",
		DefaultSubject: "Service Interval Reached",
	},
	"warranty_expiration": {
		System: "You are a customer service representative. Write an email alerting the customer " +
			"their warranty is expiring soon, suggesting they schedule needed repairs while still " +
			"covered. Keep it informative, not alarming. Do not include a subject line -- only the " +
			"body content.",
		DefaultSubject: "Your Warranty Is Expiring Soon",
	},
	"trade_in_alert": {
		System: "You are a sales representative. Write a friendly, suggestive (not pushy) email about " +
			"considering a trade-in, referencing the equipment's age and repair history if provided. " +
			"Do not include a subject line -- only the body content.",
		DefaultSubject: "Time for an Upgrade?",
	},
	"default": {
		System: "You are a professional customer service representative for a dealer service " +
			"business. Write a professional, friendly email based on the context provided. Keep the " +
			"tone warm but professional and concise. Do not include a subject line -- only the body " +
			"content.",
		DefaultSubject: "Message from Your Service Team",
	},
}

func promptFor(eventType string) eventPrompt {
	if p, ok := eventPrompts[eventType]; ok {
		return p
	}
	return eventPrompts["default"]
}
