package memwatch

// ParseMemTotal exposes parseMemTotal for tests.
func ParseMemTotal(memInfo []byte) int64 {
	return parseMemTotal(memInfo)
}

// BudgetFromTotal exposes budgetFromTotal for tests.
func BudgetFromTotal(total int64) int64 {
	return budgetFromTotal(total)
}
