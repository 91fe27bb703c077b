package salesforce

import (
	"fmt"
	"strings"

	"github.com/okian/quotaboard/internal/domain/period"
)

// Defaults for Queries.
const (
	DefaultWonStage = "Closed/Won"
)

// DefaultMeetingKeywords match Event subjects counted as meetings.
var DefaultMeetingKeywords = []string{"meeting", "call", "demo"}

var phoneTaskTypes = []string{"Call", "Outbound Call", "Inbound Call"}

// Aggregate aliases and key fields used by the builders.
const (
	fieldOwnerID      = "OwnerId"
	fieldQuotaOwnerID = "QuotaOwnerId"
	aliasAmount       = "totalAmount"
	aliasCount        = "cnt"
	aliasForecast     = "totalForecast"
	aliasQuota        = "totalQuota"
)

// Queries builds the SOQL statements behind each dashboard source.
type Queries struct {
	WonStage        string
	MeetingKeywords []string
}

// NewQueries returns builders with defaults for empty settings.
func NewQueries(wonStage string, meetingKeywords []string) Queries {
	if wonStage == "" {
		wonStage = DefaultWonStage
	}
	if len(meetingKeywords) == 0 {
		meetingKeywords = DefaultMeetingKeywords
	}
	return Queries{WonStage: wonStage, MeetingKeywords: meetingKeywords}
}

// ClosedWon sums won opportunity amounts per owner closing in r.
func (q Queries) ClosedWon(r period.Range) string {
	return fmt.Sprintf("SELECT OwnerId, SUM(Amount) %s FROM Opportunity WHERE StageName = %s AND %s GROUP BY OwnerId",
		aliasAmount, quote(q.WonStage), dateWindow("CloseDate", r))
}

// OpenPipeline sums open opportunity amounts per owner closing in r.
func (q Queries) OpenPipeline(r period.Range) string {
	return fmt.Sprintf("SELECT OwnerId, SUM(Amount) %s FROM Opportunity WHERE IsClosed = false AND %s GROUP BY OwnerId",
		aliasAmount, dateWindow("CloseDate", r))
}

// Roster selects active Sales users among ids, ordered by name.
func (q Queries) Roster(ids []string) string {
	return fmt.Sprintf("SELECT Id, Name, Manager_Name__c, Months_On_Quota__c, Department FROM User WHERE Id IN %s AND IsActive = true AND Department = 'Sales' ORDER BY Name",
		idList(ids))
}

// Meetings counts non-recurring events whose subject matches a keyword.
func (q Queries) Meetings(ids []string, r period.Range) string {
	likes := make([]string, len(q.MeetingKeywords))
	for i, kw := range q.MeetingKeywords {
		likes[i] = "Subject LIKE " + quote("%"+kw+"%")
	}
	return fmt.Sprintf("SELECT OwnerId, COUNT(Id) %s FROM Event WHERE OwnerId IN %s AND %s AND IsRecurrence = false AND (%s) GROUP BY OwnerId",
		aliasCount, idList(ids), dateWindow("ActivityDate", r), strings.Join(likes, " OR "))
}

// EmailTasks counts email tasks per owner.
func (q Queries) EmailTasks(ids []string, r period.Range) string {
	return fmt.Sprintf("SELECT OwnerId, COUNT(Id) %s FROM Task WHERE OwnerId IN %s AND %s AND Type = 'Email' GROUP BY OwnerId",
		aliasCount, idList(ids), dateWindow("ActivityDate", r))
}

// CallTasks counts call tasks per owner.
func (q Queries) CallTasks(ids []string, r period.Range) string {
	types := make([]string, len(phoneTaskTypes))
	for i, t := range phoneTaskTypes {
		types[i] = "Type = " + quote(t)
	}
	return fmt.Sprintf("SELECT OwnerId, COUNT(Id) %s FROM Task WHERE OwnerId IN %s AND %s AND (%s) GROUP BY OwnerId",
		aliasCount, idList(ids), dateWindow("ActivityDate", r), strings.Join(types, " OR "))
}

// Events counts every event per owner.
func (q Queries) Events(ids []string, r period.Range) string {
	return fmt.Sprintf("SELECT OwnerId, COUNT(Id) %s FROM Event WHERE OwnerId IN %s AND %s GROUP BY OwnerId",
		aliasCount, idList(ids), dateWindow("ActivityDate", r))
}

// Forecast sums forecast amounts for periods starting in r.
func (q Queries) Forecast(ids []string, r period.Range) string {
	return fmt.Sprintf("SELECT OwnerId, SUM(ForecastAmount) %s FROM ForecastingItem WHERE OwnerId IN %s AND %s GROUP BY OwnerId",
		aliasForecast, idList(ids), dateWindow("Period.StartDate", r))
}

// Quota sums quota amounts per quota owner for quotas starting in r.
func (q Queries) Quota(ids []string, r period.Range) string {
	return fmt.Sprintf("SELECT QuotaOwnerId, SUM(QuotaAmount) %s FROM ForecastingQuota WHERE QuotaOwnerId IN %s AND %s GROUP BY QuotaOwnerId",
		aliasQuota, idList(ids), dateWindow("StartDate", r))
}

// HistoricPipeline sums every opportunity amount per owner closing in r.
func (q Queries) HistoricPipeline(ids []string, r period.Range) string {
	return fmt.Sprintf("SELECT OwnerId, SUM(Amount) %s FROM Opportunity WHERE OwnerId IN %s AND %s GROUP BY OwnerId",
		aliasAmount, idList(ids), dateWindow("CloseDate", r))
}

// HistoricClosedWon sums won amounts per owner closing in r.
func (q Queries) HistoricClosedWon(ids []string, r period.Range) string {
	return fmt.Sprintf("SELECT OwnerId, SUM(Amount) %s FROM Opportunity WHERE OwnerId IN %s AND %s AND StageName = %s GROUP BY OwnerId",
		aliasAmount, idList(ids), dateWindow("CloseDate", r), quote(q.WonStage))
}

func dateWindow(field string, r period.Range) string {
	return fmt.Sprintf("%s >= %s AND %s <= %s", field, r.StartDate(), field, r.EndDate())
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

// quote renders s as a SOQL string literal.
func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}

func idList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = quote(id)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}
