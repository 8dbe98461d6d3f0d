package binance

// searchRequest is the body of the P2P advertisement search
type searchRequest struct {
	Asset         string   `json:"asset"`
	Fiat          string   `json:"fiat"`
	TradeType     string   `json:"tradeType"`
	Page          int      `json:"page"`
	Rows          int      `json:"rows"`
	PayTypes      []string `json:"payTypes"`
	PublisherType *string  `json:"publisherType"`
}

// searchResponse is one page of advertisements
type searchResponse struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    []advertisement `json:"data"`
	Total   int             `json:"total"`
	Success bool            `json:"success"`
}

type advertisement struct {
	Adv        adv        `json:"adv"`
	Advertiser advertiser `json:"advertiser"`
}

type adv struct {
	Price                string `json:"price"`
	TradeType            string `json:"tradeType"`
	SurplusAmount        string `json:"surplusAmount"`
	MinSingleTransAmount string `json:"minSingleTransAmount"`
	MaxSingleTransAmount string `json:"maxSingleTransAmount"`
}

type advertiser struct {
	NickName string `json:"nickName"`
}
