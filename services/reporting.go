package services

import "truthlens/models"

const basicReportingContacts = 2

// ReportingContactsFor returns every contact for FALSE INFORMATION and
// MISLEADING, and only the first two otherwise.
func ReportingContactsFor(lex *Lexicon, verdict models.Verdict) []models.ReportingContact {
	contacts := lex.ReportingContacts()
	switch verdict {
	case models.VerdictFalse, models.VerdictMisleading:
		return contacts
	}
	if len(contacts) > basicReportingContacts {
		contacts = contacts[:basicReportingContacts]
	}
	return contacts
}
