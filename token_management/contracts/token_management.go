package contracts

type ITokenManagement interface {
	UsedTokens(inputToken int, outputToken int)
	CountTokens(text string) int
	DisplayTokens(providerName string, model string)
	GetCurrentTokenUsage() (total int, input int, output int)
	ClearToken()
}
