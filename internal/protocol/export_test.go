package protocol

func ValidateObs(raw []byte) error { return validate("obs", raw) }
func ValidateAct(raw []byte) error { return validate("act", raw) }
