package db

const (
	SEND_KIND_SINGLE = "single"
	SEND_KIND_MULTI  = "multi"
	SEND_KIND_BATCH  = "batch"
	SEND_KIND_SWEEP  = "sweep"
)
