// internal/ssh/command.go

package ssh

// Command to polecenie front endu dla pętli połączenia. Polecenia
// w obrębie jednego połączenia są doręczane w kolejności FIFO.
type Command interface {
	isCommand()
}

// SendBytes przekazuje bajty (najczęściej klawisze) do zdalnej powłoki.
type SendBytes struct {
	Data []byte
}

// Resize zgłasza nową geometrię terminala. Pętla deduplikuje kolejne
// żądania z tą samą parą (Cols, Rows).
type Resize struct {
	Cols int
	Rows int
}

// Disconnect kończy pętlę i zamyka połączenie. Polecenie jest
// kooperatywne - pętla zauważa je przy następnej iteracji.
type Disconnect struct{}

func (SendBytes) isCommand()  {}
func (Resize) isCommand()     {}
func (Disconnect) isCommand() {}

// Event to zdarzenie silnika doręczane front endowi. Każdy subskrybent
// widzi zdarzenia w kolejności, w jakiej wytworzył je protokół;
// ostatnim zdarzeniem życia połączenia jest zawsze DisconnectedEvent.
type Event interface {
	isEvent()
}

// ConnectedEvent - handshake, uwierzytelnienie i kanał interaktywny
// zakończone powodzeniem. Zawsze poprzedza pierwsze DataReceivedEvent.
type ConnectedEvent struct{}

// DisconnectedEvent - połączenie zakończone; nic po nim nie następuje.
type DisconnectedEvent struct{}

// DataReceivedEvent niesie bajty zdalnej powłoki bez żadnej
// interpretacji (stdout i stderr jednakowo).
type DataReceivedEvent struct {
	Data []byte
}

// ErrorEvent niesie czytelny opis awarii.
type ErrorEvent struct {
	Message string
}

// FileTransferReadyEvent doręcza otwartą sesję transferu plików.
type FileTransferReadyEvent struct {
	Transfer *FileTransfer
}

func (ConnectedEvent) isEvent()         {}
func (DisconnectedEvent) isEvent()      {}
func (DataReceivedEvent) isEvent()      {}
func (ErrorEvent) isEvent()             {}
func (FileTransferReadyEvent) isEvent() {}
