package extraction

import "strings"

const systemPrompt = `You analyze transcripts of debt-collection phone calls and return STRICT JSON ONLY, matching this shape exactly:
{
  "confirmed_identity": bool,
  "speaking_with_debtor": bool,
  "wrong_number": bool,
  "outcome": one of ["promised_to_pay","partial_promise","disputed","hardship","wrong_number","callback_requested","hung_up","no_answer","voicemail_left","other"],
  "promise_made": bool,
  "promise": {"amount": number, "promise_date": "YYYY-MM-DD"} or null,
  "hardship_reason": string or omit (max 500 chars),
  "dispute_reason": string or omit (max 500 chars),
  "callback_requested": bool,
  "preferred_callback_time": string or omit (max 100 chars),
  "requested_no_calls": bool,
  "debtor_sentiment": integer 1-5 (1 hostile, 3 neutral, 5 cooperative),
  "call_summary": string 10-500 chars,
  "final_state": one of ["greeting","verification","purpose","negotiation","objection_handling","commitment","closing","wrong_number","hardship","callback"]
}
Rules:
- promise must be set when and only when promise_made is true
- report only what the transcript supports; never invent amounts or dates
- amounts are plain numbers without currency symbols`

func buildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	b.WriteString(req.Transcript)
	if s := strings.TrimSpace(req.Summary); s != "" {
		b.WriteString("\n\nProvider summary:\n")
		b.WriteString(s)
	}
	return b.String()
}
