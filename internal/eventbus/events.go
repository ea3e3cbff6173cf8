package eventbus

// OverlayEvent установка или разрушение оверлея
type OverlayEvent struct {
	ID    string `json:"id"`
	Slot  string `json:"slot"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Actor string `json:"actor,omitempty"`
	Drops int    `json:"drops,omitempty"`
	XP    int    `json:"xp,omitempty"`
}

// MoveEvent итог обработки сдвига поршнем
type MoveEvent struct {
	Push      bool `json:"push"`
	Moved     int  `json:"moved"`
	Destroyed int  `json:"destroyed"`
}

// DispatchEvent отправка чанка зрителю
type DispatchEvent struct {
	ChunkX int    `json:"chunkX"`
	ChunkZ int    `json:"chunkZ"`
	Cells  int    `json:"cells"`
	Viewer string `json:"viewer"`
}

// ReloadEvent загрузка определений
type ReloadEvent struct {
	Definitions int     `json:"definitions"`
	Token       float64 `json:"token"`
}

// StorageErrorEvent ошибка операции с журналом
type StorageErrorEvent struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}
