package backend

import "time"

// The app backend wraps every payload in a {"code": ..., "info": ...}
// envelope with camelCase keys.
type apiResponse[T any] struct {
	Code int    `json:"code"`
	Info *T     `json:"info"`
	Msg  string `json:"message"`
}

// GoodsInfo describes the prize attached to a room.
type GoodsInfo struct {
	Price     int    `json:"price"`
	ImgURL    string `json:"imgUrl"`
	BrandID   int    `json:"brandId"`
	GoodsID   string `json:"goodsId"`
	BrandName string `json:"brandName"`
	GoodsName string `json:"goodsName"`
}

// RoomInfo is the app backend's room record: capacity plus the shared
// schedule every participant synchronizes on.
type RoomInfo struct {
	RoomID           int       `json:"roomId"`
	PlayerCount      int       `json:"playerCount"`
	GoodsInfo        GoodsInfo `json:"goodsInfo"`
	ExposureDay      time.Time `json:"exposureDay"`
	BeginRunningTime time.Time `json:"beginRunningTime"`
	EndRunningTime   time.Time `json:"endRunningTime"`
	PlayTime         int       `json:"playTime"`
}

// ItemInfo is one inventory slot in the app backend's user record.
type ItemInfo struct {
	ItemNo    int `json:"item_no"`
	ItemCount int `json:"item_count"`
}

// UserInfo is the app backend's user record.
type UserInfo struct {
	Nickname  string     `json:"nickname"`
	WinCount  int        `json:"winCount"`
	Inventory []ItemInfo `json:"inventory"`
	Energy    int        `json:"energy"`
}

// userStatusBody is the status-delta wire shape.
type userStatusBody struct {
	UserID      int         `json:"userId"`
	SpentItems  map[int]int `json:"spentItems"`
	SpentEnergy int         `json:"spentEnergy"`
}

// gameResultBody is the final-result wire shape.
type gameResultBody struct {
	RoomID  int             `json:"roomId"`
	UserIDs []int           `json:"userIds"`
	First   gameResultFirst `json:"first"`
}

type gameResultFirst struct {
	UserID     int         `json:"userId"`
	SpentItems map[int]int `json:"spentItems"`
	HostTime   float64     `json:"hostTime"`
}
