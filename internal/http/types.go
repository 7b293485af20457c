package http

// Amounts are in display units on the wire.

type SendRequest struct {
	SenderAddress    string `json:"senderAddress"`
	RecipientAddress string `json:"recipientAddress"`
	// Recipients with PerRecipientAmounts pays several addresses in one transaction.
	// Without PerRecipientAmounts every recipient gets Amount.
	Recipients          []string  `json:"recipients"`
	Amount              float64   `json:"amount"`
	PerRecipientAmounts []float64 `json:"perRecipientAmounts"`
	PrivateKey          string    `json:"privateKey"`
	ElectrumServers     []string  `json:"electrumServers"`
	EmptyWallet         bool      `json:"emptyWallet"`
}

type SendResponse struct {
	Success   bool    `json:"success"`
	TxHash    string  `json:"txHash"`
	Amount    float64 `json:"amount"`
	Fee       float64 `json:"fee"`
	RequestId string  `json:"requestId"`
}

type BatchRecipient struct {
	Address         string  `json:"address"`
	Amount          float64 `json:"amount"`
	RecipientPubkey string  `json:"recipientPubkey"`
	EventId         string  `json:"eventId"`
	LashId          string  `json:"lashId"`
}

type BatchSendRequest struct {
	PrivateKeyWIF   string           `json:"privateKeyWIF"`
	SenderPubkey    string           `json:"senderPubkey"`
	Recipients      []BatchRecipient `json:"recipients"`
	ChangeAddress   string           `json:"changeAddress"`
	ElectrumServers []string         `json:"electrum_servers"`
}

type BatchRecipientResult struct {
	BatchRecipient
	Vout       int    `json:"vout"`
	FromWallet string `json:"fromWallet"`
	ToWallet   string `json:"toWallet"`
}

type BatchSendResponse struct {
	Success     bool                   `json:"success"`
	TxHash      string                 `json:"txHash"`
	Fee         float64                `json:"fee"`
	TotalAmount float64                `json:"totalAmount"`
	Recipients  []BatchRecipientResult `json:"recipients"`
	RequestId   string                 `json:"requestId"`
}

type BalanceRequest struct {
	WalletAddresses []string `json:"wallet_addresses"`
	ElectrumServers []string `json:"electrum_servers"`
}

type WalletBalance struct {
	WalletId string  `json:"wallet_id"`
	Balance  float64 `json:"balance"`
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
}

type BalanceResponse struct {
	Success      bool            `json:"success"`
	TotalBalance float64         `json:"total_balance"`
	Wallets      []WalletBalance `json:"wallets"`
	SuccessCount int             `json:"success_count"`
	ErrorCount   int             `json:"error_count"`
	Error        string          `json:"error,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Stage   string `json:"stage,omitempty"`
}
