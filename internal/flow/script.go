package flow

import (
	"github.com/carebridge/leadflow/internal/models"
)

// Step ids for the intake script. Exported ids are the ones collaborators and
// tests key on; the rest are internal wiring.
const (
	StepWelcome           = "welcome"
	StepMainMenu          = "main-menu"
	StepContactName       = "contact-name"
	StepContactEmail      = "contact-email"
	StepContactPhone      = "contact-phone"
	StepContactPreference = "contact-preference"
	StepInsuranceDOB      = "insurance-dob"
	StepCallbackTime      = "callback-time"
	StepConfirmation      = "confirmation"
)

// Flow choice values written once at the main menu.
const (
	FlowChoicePricing    = "pricing"
	FlowChoiceInsurance  = "insurance"
	FlowChoiceAdmissions = "admissions"
	FlowChoiceQuestion   = "question"
)

// Contact preference values.
const (
	ContactPreferenceCall  = "call"
	ContactPreferenceText  = "text"
	ContactPreferenceEmail = "email"
)

// DefaultScript builds the production intake script: four flow variants
// (pricing, insurance verification, admissions, general question) converging
// into a shared contact chain, with branch-specific continuations resolved
// through the route-after-contact sentinel.
func DefaultScript() *StepTable {
	hasField := func(field string) func(models.CollectedData) bool {
		return func(data models.CollectedData) bool {
			return data[field] != ""
		}
	}

	steps := []StepDefinition{
		{
			ID:     StepWelcome,
			Kind:   models.StepKindMessage,
			Prompt: "Hi there! 👋 Welcome to Carebridge Recovery. I can help with pricing, insurance, admissions, or general questions.",
			Next:   NextFixed(StepMainMenu),
		},
		{
			ID:            StepMainMenu,
			Kind:          models.StepKindChoice,
			Prompt:        "What can we help you with today?",
			CollectsField: models.FieldFlowChoice,
			Options: []Option{
				{Label: "Get Pricing", Value: FlowChoicePricing},
				{Label: "Verify Insurance", Value: FlowChoiceInsurance},
				{Label: "Start Admissions", Value: FlowChoiceAdmissions},
				{Label: "Ask a Question", Value: FlowChoiceQuestion},
			},
			Next: NextByValue{
				Targets: map[string]string{
					FlowChoicePricing:    "pricing-intro",
					FlowChoiceInsurance:  "insurance-intro",
					FlowChoiceAdmissions: "admissions-intro",
					FlowChoiceQuestion:   "question-topic",
				},
				Fallback: "question-topic",
			},
		},

		// Pricing flow.
		{
			ID:           "pricing-intro",
			Kind:         models.StepKindMessage,
			Prompt:       "Happy to help with pricing. A few quick questions so we can give you accurate numbers.",
			Next:         NextFixed("pricing-payment-type"),
			FlowCategory: FlowChoicePricing,
		},
		{
			ID:            "pricing-payment-type",
			Kind:          models.StepKindChoice,
			Prompt:        "How do you plan to pay for treatment?",
			CollectsField: models.FieldPaymentType,
			Options: []Option{
				{Label: "Private Pay", Value: "private-pay"},
				{Label: "Insurance", Value: "insurance"},
			},
			Next:         NextFixed("pricing-treatment-type"),
			FlowCategory: FlowChoicePricing,
		},
		{
			ID:            "pricing-treatment-type",
			Kind:          models.StepKindChoice,
			Prompt:        "Which level of care are you looking into?",
			CollectsField: models.FieldTreatmentType,
			Options: []Option{
				{Label: "Outpatient", Value: "outpatient"},
				{Label: "Intensive Outpatient", Value: "intensive-outpatient"},
				{Label: "Residential", Value: "residential"},
				{Label: "Detox", Value: "detox"},
			},
			Next:         NextFixed("pricing-who-for"),
			FlowCategory: FlowChoicePricing,
		},
		{
			ID:            "pricing-who-for",
			Kind:          models.StepKindChoice,
			Prompt:        "Who is treatment for?",
			CollectsField: models.FieldWhoFor,
			Options: []Option{
				{Label: "Myself", Value: "myself"},
				{Label: "A Loved One", Value: "loved-one"},
				{Label: "A Client", Value: "client"},
			},
			Next:         NextFixed("pricing-handoff"),
			FlowCategory: FlowChoicePricing,
		},
		{
			ID:           "pricing-handoff",
			Kind:         models.StepKindMessage,
			Prompt:       "Almost there. We just need a couple of details so our team can send your pricing.",
			Next:         NextFixed(StepContactName),
			FlowCategory: FlowChoicePricing,
		},

		// Insurance verification flow.
		{
			ID:           "insurance-intro",
			Kind:         models.StepKindMessage,
			Prompt:       "We can verify your benefits at no cost. Let's grab your policy details.",
			Next:         NextFixed("insurance-carrier"),
			FlowCategory: FlowChoiceInsurance,
		},
		{
			ID:            "insurance-carrier",
			Kind:          models.StepKindChoice,
			Prompt:        "Who is your insurance carrier?",
			CollectsField: models.FieldInsuranceCarrier,
			Options: []Option{
				{Label: "Aetna", Value: "aetna"},
				{Label: "Cigna", Value: "cigna"},
				{Label: "Blue Cross Blue Shield", Value: "bcbs"},
				{Label: "United Healthcare", Value: "united"},
				{Label: "Other", Value: "other"},
			},
			Next:         NextFixed("insurance-member-id"),
			FlowCategory: FlowChoiceInsurance,
		},
		{
			ID:            "insurance-member-id",
			Kind:          models.StepKindText,
			Prompt:        "What's the member ID on your insurance card?",
			CollectsField: models.FieldMemberID,
			Next:          NextFixed(StepContactName),
			FlowCategory:  FlowChoiceInsurance,
		},

		// Admissions flow.
		{
			ID:           "admissions-intro",
			Kind:         models.StepKindMessage,
			Prompt:       "We'll get you connected with our admissions team right away.",
			Next:         NextFixed("admissions-treatment-type"),
			FlowCategory: FlowChoiceAdmissions,
		},
		{
			ID:            "admissions-treatment-type",
			Kind:          models.StepKindChoice,
			Prompt:        "Which program are you interested in?",
			CollectsField: models.FieldTreatmentType,
			Options: []Option{
				{Label: "Outpatient", Value: "outpatient"},
				{Label: "Intensive Outpatient", Value: "intensive-outpatient"},
				{Label: "Residential", Value: "residential"},
				{Label: "Detox", Value: "detox"},
				{Label: "Not Sure Yet", Value: "unsure"},
			},
			Next:         NextFixed("admissions-urgency"),
			FlowCategory: FlowChoiceAdmissions,
		},
		{
			ID:            "admissions-urgency",
			Kind:          models.StepKindChoice,
			Prompt:        "How soon are you looking to start?",
			CollectsField: models.FieldUrgency,
			Options: []Option{
				{Label: "As soon as possible", Value: "asap"},
				{Label: "Within a week", Value: "this-week"},
				{Label: "Just researching", Value: "researching"},
			},
			Next:         NextFixed("admissions-handoff"),
			FlowCategory: FlowChoiceAdmissions,
		},
		{
			ID:           "admissions-handoff",
			Kind:         models.StepKindMessage,
			Prompt:       "Thank you. Let's get your contact details so our admissions team can reach you.",
			Next:         NextFixed(StepContactName),
			FlowCategory: FlowChoiceAdmissions,
		},

		// General question flow.
		{
			ID:            "question-topic",
			Kind:          models.StepKindChoice,
			Prompt:        "What's your question about?",
			CollectsField: models.FieldQuestionTopic,
			Options: []Option{
				{Label: "Treatment programs", Value: "programs"},
				{Label: "Insurance & cost", Value: "cost"},
				{Label: "Visiting hours", Value: "visiting"},
				{Label: "Something else", Value: "other"},
			},
			Next:         NextFixed("question-text"),
			FlowCategory: FlowChoiceQuestion,
		},
		{
			ID:            "question-text",
			Kind:          models.StepKindParagraph,
			Prompt:        "Go ahead and type your question — we'll get you an answer.",
			CollectsField: models.FieldQuestionText,
			Next:          NextFixed(StepContactName),
			FlowCategory:  FlowChoiceQuestion,
		},

		// Shared contact chain. Every branch funnels through here, then the
		// route-after-contact sentinel resumes the branch-specific tail.
		{
			ID:            StepContactName,
			Kind:          models.StepKindText,
			Prompt:        "Great — who do we have the pleasure of speaking with?",
			CollectsField: models.FieldFullName,
			Next:          NextFixed(StepContactEmail),
		},
		{
			ID:            StepContactEmail,
			Kind:          models.StepKindEmail,
			Prompt:        "What's the best email to reach you at?",
			CollectsField: models.FieldEmail,
			Next:          NextFixed(StepContactPhone),
			SkipWhen:      hasField(models.FieldEmail),
		},
		{
			ID:            StepContactPhone,
			Kind:          models.StepKindPhone,
			Prompt:        "And the best phone number?",
			CollectsField: models.FieldPhone,
			Next:          NextSentinel{},
			SkipWhen:      hasField(models.FieldPhone),
		},

		// Branch continuations after the contact chain.
		{
			ID:            StepContactPreference,
			Kind:          models.StepKindChoice,
			Prompt:        "How would you prefer we follow up?",
			CollectsField: models.FieldContactPreference,
			Options: []Option{
				{Label: "Call Me", Value: ContactPreferenceCall},
				{Label: "Text Me", Value: ContactPreferenceText},
				{Label: "Email Me", Value: ContactPreferenceEmail},
			},
			Next: NextFixed(StepConfirmation),
		},
		{
			ID:            StepInsuranceDOB,
			Kind:          models.StepKindDate,
			Prompt:        "To verify your benefits we need the policyholder's date of birth (MM-DD-YYYY).",
			CollectsField: models.FieldDateOfBirth,
			Next:          NextFixed("insurance-review"),
			SkipWhen:      hasField(models.FieldDateOfBirth),
			FlowCategory:  FlowChoiceInsurance,
		},
		{
			ID:           "insurance-review",
			Kind:         models.StepKindMessage,
			Prompt:       "Thanks! Our team will verify your benefits and have answers within one business day.",
			Next:         NextFixed(StepContactPreference),
			FlowCategory: FlowChoiceInsurance,
		},
		{
			ID:            StepCallbackTime,
			Kind:          models.StepKindSlotPicker,
			Prompt:        "When is the best time for our admissions team to call?",
			CollectsField: models.FieldCallbackTime,
			Options: []Option{
				{Label: "Morning", Value: "morning"},
				{Label: "Afternoon", Value: "afternoon"},
				{Label: "Evening", Value: "evening"},
				{Label: "Anytime", Value: "anytime"},
			},
			Next:         NextFixed("admissions-notes"),
			FlowCategory: FlowChoiceAdmissions,
		},
		{
			ID:            "admissions-notes",
			Kind:          models.StepKindParagraph,
			Prompt:        "Anything else our team should know before they call?",
			CollectsField: models.FieldAdditionalNotes,
			Next:          NextFixed(StepConfirmation),
			FlowCategory:  FlowChoiceAdmissions,
		},

		// Terminal confirmation.
		{
			ID:     StepConfirmation,
			Kind:   models.StepKindConfirmation,
			Prompt: "You're all set! Our team will reach out shortly. 💙",
		},
	}

	routing := map[string]string{
		FlowChoicePricing:    StepContactPreference,
		FlowChoiceInsurance:  StepInsuranceDOB,
		FlowChoiceAdmissions: StepCallbackTime,
		FlowChoiceQuestion:   StepContactPreference,
	}

	return NewStepTable(StepWelcome, steps, routing, StepConfirmation)
}
