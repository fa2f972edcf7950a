package events

// Topic constants for domain events emitted by the register.
const (
	TopicSaleCompleted = "sale.completed"
	TopicSaleVoided    = "sale.voided"
	TopicStockLow      = "stock.low"
)
