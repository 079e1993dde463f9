package models

// WireInstructions is the single canonical shape shown for both deposit
// remainders and standalone account funding. Memo carries the customer's
// account reference so inbound wires can be matched.
type WireInstructions struct {
	BankName           string `json:"bank_name"`
	BankAddress        string `json:"bank_address"`
	RoutingNumber      string `json:"routing_number"`
	AccountNumber      string `json:"account_number"`
	BeneficiaryName    string `json:"beneficiary_name"`
	BeneficiaryAddress string `json:"beneficiary_address"`
	Memo               string `json:"memo"`
}
