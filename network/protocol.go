package network

// Inbound command events accepted by the server.
const (
	CmdHeartbeat          = "Heartbeat"
	CmdCreateRoom         = "CreateRoom"
	CmdJoinRoom           = "JoinRoom"
	CmdListRooms          = "ListRooms"
	CmdGetRoomDetail      = "GetRoomDetail"
	CmdJoinLobbyGroup     = "JoinLobbyGroup"
	CmdLeaveLobbyGroup    = "LeaveLobbyGroup"
	CmdCreateGame         = "CreateGame"
	CmdJoinGameGroup      = "JoinGameGroup"
	CmdLeaveGameGroup     = "LeaveGameGroup"
	CmdGetGameState       = "GetGameState"
	CmdRollDice           = "RollDice"
	CmdAnswerQuizQuestion = "AnswerQuizQuestion"
	CmdSurrender          = "Surrender"
	CmdSendEmote          = "SendEmote"
)
