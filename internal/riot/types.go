package riot

// MatchBundle raggruppa dettaglio e timeline di una partita.
// Esiste solo durante l'esecuzione del task (mai persistito oltre la cache a vita breve).
type MatchBundle struct {
	Detail   *MatchDetail   `json:"detail"`
	Timeline *MatchTimeline `json:"timeline"`
}

// MatchDetail rappresenta il dettaglio di una partita dal vendor
type MatchDetail struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

// MatchMetadata metadati della partita
type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"`
}

// MatchInfo informazioni di gioco della partita
type MatchInfo struct {
	QueueID          int           `json:"queueId"`
	GameDuration     int64         `json:"gameDuration"` // seconds
	GameEndTimestamp int64         `json:"gameEndTimestamp"`
	GameVersion      string        `json:"gameVersion"`
	Participants     []Participant `json:"participants"`
	Teams            []Team        `json:"teams"`
}

// Participant è un giocatore all'interno della partita
type Participant struct {
	ParticipantID int    `json:"participantId"`
	PUUID         string `json:"puuid"`
	SummonerName  string `json:"summonerName"`
	RiotIDName    string `json:"riotIdGameName"`
	RiotIDTagline string `json:"riotIdTagline"`
	ChampionName  string `json:"championName"`
	TeamID        int    `json:"teamId"`
	Win           bool   `json:"win"`

	Kills   int `json:"kills"`
	Deaths  int `json:"deaths"`
	Assists int `json:"assists"`

	TotalDamageDealtToChampions int `json:"totalDamageDealtToChampions"`
	TotalDamageTaken            int `json:"totalDamageTaken"`

	GoldEarned          int `json:"goldEarned"`
	TotalMinionsKilled  int `json:"totalMinionsKilled"`
	NeutralMinionsKilled int `json:"neutralMinionsKilled"`

	VisionScore             int `json:"visionScore"`
	WardsPlaced             int `json:"wardsPlaced"`
	WardsKilled             int `json:"wardsKilled"`
	VisionWardsBoughtInGame int `json:"visionWardsBoughtInGame"`

	DragonKills         int `json:"dragonKills"`
	BaronKills          int `json:"baronKills"`
	TurretTakedowns     int `json:"turretTakedowns"`
	InhibitorTakedowns  int `json:"inhibitorTakedowns"`
	ObjectivesStolen    int `json:"objectivesStolen"`

	TimeCCingOthers                int `json:"timeCCingOthers"`
	TotalHealsOnTeammates          int `json:"totalHealsOnTeammates"`
	TotalDamageShieldedOnTeammates int `json:"totalDamageShieldedOnTeammates"`

	// Arena
	Placement       int `json:"placement"`
	PlayerSubteamID int `json:"playerSubteamId"`
}

// Identity restituisce l'identificativo visibile del giocatore
func (p Participant) Identity() string {
	if p.RiotIDName != "" {
		if p.RiotIDTagline != "" {
			return p.RiotIDName + "#" + p.RiotIDTagline
		}
		return p.RiotIDName
	}
	return p.SummonerName
}

// Team rappresenta una squadra della partita
type Team struct {
	TeamID     int            `json:"teamId"`
	Win        bool           `json:"win"`
	Objectives TeamObjectives `json:"objectives"`
}

// TeamObjectives obiettivi conquistati dalla squadra
type TeamObjectives struct {
	Baron      ObjectiveCount `json:"baron"`
	Dragon     ObjectiveCount `json:"dragon"`
	RiftHerald ObjectiveCount `json:"riftHerald"`
	Tower      ObjectiveCount `json:"tower"`
	Inhibitor  ObjectiveCount `json:"inhibitor"`
}

// ObjectiveCount conteggio di un obiettivo
type ObjectiveCount struct {
	First bool `json:"first"`
	Kills int  `json:"kills"`
}

// MatchTimeline rappresenta la timeline per-minuto della partita
type MatchTimeline struct {
	Info TimelineInfo `json:"info"`
}

// TimelineInfo frame ordinati della timeline
type TimelineInfo struct {
	FrameInterval int64           `json:"frameInterval"` // milliseconds
	Frames        []TimelineFrame `json:"frames"`
}

// TimelineFrame un frame della timeline; i timestamp sono
// monotonicamente non decrescenti
type TimelineFrame struct {
	Timestamp         int64                       `json:"timestamp"` // milliseconds
	ParticipantFrames map[string]ParticipantFrame `json:"participantFrames"`
}

// ParticipantFrame stato di un partecipante in un frame
type ParticipantFrame struct {
	ParticipantID       int `json:"participantId"`
	TotalGold           int `json:"totalGold"`
	XP                  int `json:"xp"`
	Level               int `json:"level"`
	MinionsKilled       int `json:"minionsKilled"`
	JungleMinionsKilled int `json:"jungleMinionsKilled"`
}
