package sims

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

func parseSimInput(r *http.Request) SimInput {
	return SimInput{
		IMEI:        r.PostFormValue("imei"),
		IMSI:        r.PostFormValue("imsi"),
		PhoneNumber: r.PostFormValue("phone_number"),
		Carrier:     r.PostFormValue("carrier"),
		IssueDate:   r.PostFormValue("issue_date"),
		ExpiryDate:  r.PostFormValue("expiry_date"),
		Status:      r.PostFormValue("status"),
		OwnerName:   r.PostFormValue("owner_name"),
		OwnerID:     r.PostFormValue("owner_id"),
	}
}

// parseSimUpdate reads only the mutable fields; imei and imsi in the request
// body are ignored.
func parseSimUpdate(r *http.Request) SimUpdate {
	return SimUpdate{
		PhoneNumber: r.PostFormValue("phone_number"),
		Carrier:     r.PostFormValue("carrier"),
		ExpiryDate:  r.PostFormValue("expiry_date"),
		Status:      r.PostFormValue("status"),
		OwnerName:   r.PostFormValue("owner_name"),
		OwnerID:     r.PostFormValue("owner_id"),
	}
}

func parseUsageForm(r *http.Request) (usageFormValues, UsageInput, map[string]string) {
	values := usageFormValues{
		DataUsedMB:  strings.TrimSpace(r.PostFormValue("data_used_mb")),
		CallMinutes: strings.TrimSpace(r.PostFormValue("call_minutes")),
		SMSCount:    strings.TrimSpace(r.PostFormValue("sms_count")),
		Date:        strings.TrimSpace(r.PostFormValue("date")),
	}
	errs := map[string]string{}
	input := UsageInput{Date: values.Date}
	if values.DataUsedMB != "" {
		v, err := strconv.ParseFloat(values.DataUsedMB, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			errs["data_used_mb"] = "Enter a number"
		}
		input.DataUsedMB = v
	}
	if values.CallMinutes != "" {
		v, err := strconv.ParseFloat(values.CallMinutes, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			errs["call_minutes"] = "Enter a number"
		}
		input.CallMinutes = v
	}
	if values.SMSCount != "" {
		v, err := strconv.ParseInt(values.SMSCount, 10, 64)
		if err != nil {
			errs["sms_count"] = "Enter a whole number"
		}
		input.SMSCount = v
	}
	return values, input, errs
}

func inputFromSim(sim SimCard) SimInput {
	in := SimInput{
		IMEI:      sim.IMEI,
		IMSI:      sim.IMSI,
		Carrier:   sim.Carrier,
		IssueDate: sim.IssueDate.Format(DateLayout),
		Status:    string(sim.Status),
	}
	if sim.PhoneNumber != nil {
		in.PhoneNumber = *sim.PhoneNumber
	}
	if sim.ExpiryDate != nil {
		in.ExpiryDate = sim.ExpiryDate.Format(DateLayout)
	}
	if sim.OwnerName != nil {
		in.OwnerName = *sim.OwnerName
	}
	if sim.OwnerID != nil {
		in.OwnerID = *sim.OwnerID
	}
	return in
}
