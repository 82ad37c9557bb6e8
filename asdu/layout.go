package asdu

type typeInfo struct {
	name     string
	elems    []ElementKind
	sequence bool // may be sent with the SQ bit set
	known    bool
}

var typeTable [256]typeInfo

func define(t TypeID, name string, sequence bool, elems ...ElementKind) {
	typeTable[t] = typeInfo{name: name, elems: elems, sequence: sequence, known: true}
}

func init() {
	const seq, single = true, false

	define(MSpNa1, "M_SP_NA_1", seq, KindSIQ)
	define(MSpTa1, "M_SP_TA_1", single, KindSIQ, KindCP24)
	define(MDpNa1, "M_DP_NA_1", seq, KindDIQ)
	define(MDpTa1, "M_DP_TA_1", single, KindDIQ, KindCP24)
	define(MStNa1, "M_ST_NA_1", seq, KindVTI, KindQDS)
	define(MStTa1, "M_ST_TA_1", single, KindVTI, KindQDS, KindCP24)
	define(MBoNa1, "M_BO_NA_1", seq, KindBSI, KindQDS)
	define(MBoTa1, "M_BO_TA_1", single, KindBSI, KindQDS, KindCP24)
	define(MMeNa1, "M_ME_NA_1", seq, KindNVA, KindQDS)
	define(MMeTa1, "M_ME_TA_1", single, KindNVA, KindQDS, KindCP24)
	define(MMeNb1, "M_ME_NB_1", seq, KindSVA, KindQDS)
	define(MMeTb1, "M_ME_TB_1", single, KindSVA, KindQDS, KindCP24)
	define(MMeNc1, "M_ME_NC_1", seq, KindR32, KindQDS)
	define(MMeTc1, "M_ME_TC_1", single, KindR32, KindQDS, KindCP24)
	define(MItNa1, "M_IT_NA_1", seq, KindBCR)
	define(MItTa1, "M_IT_TA_1", single, KindBCR, KindCP24)
	define(MEpTa1, "M_EP_TA_1", single, KindSEP, KindCP16, KindCP24)
	define(MEpTb1, "M_EP_TB_1", single, KindSPE, KindQDP, KindCP16, KindCP24)
	define(MEpTc1, "M_EP_TC_1", single, KindOCI, KindQDP, KindCP16, KindCP24)
	define(MPsNa1, "M_PS_NA_1", seq, KindSCD, KindQDS)
	define(MMeNd1, "M_ME_ND_1", seq, KindNVA)
	define(MSpTb1, "M_SP_TB_1", single, KindSIQ, KindCP56)
	define(MDpTb1, "M_DP_TB_1", single, KindDIQ, KindCP56)
	define(MStTb1, "M_ST_TB_1", single, KindVTI, KindQDS, KindCP56)
	define(MBoTb1, "M_BO_TB_1", single, KindBSI, KindQDS, KindCP56)
	define(MMeTd1, "M_ME_TD_1", single, KindNVA, KindQDS, KindCP56)
	define(MMeTe1, "M_ME_TE_1", single, KindSVA, KindQDS, KindCP56)
	define(MMeTf1, "M_ME_TF_1", single, KindR32, KindQDS, KindCP56)
	define(MItTb1, "M_IT_TB_1", single, KindBCR, KindCP56)
	define(MEpTd1, "M_EP_TD_1", single, KindSEP, KindCP16, KindCP56)
	define(MEpTe1, "M_EP_TE_1", single, KindSPE, KindQDP, KindCP16, KindCP56)
	define(MEpTf1, "M_EP_TF_1", single, KindOCI, KindQDP, KindCP16, KindCP56)

	define(CScNa1, "C_SC_NA_1", single, KindSCO)
	define(CDcNa1, "C_DC_NA_1", single, KindDCO)
	define(CRcNa1, "C_RC_NA_1", single, KindRCO)
	define(CSeNa1, "C_SE_NA_1", single, KindNVA, KindQOS)
	define(CSeNb1, "C_SE_NB_1", single, KindSVA, KindQOS)
	define(CSeNc1, "C_SE_NC_1", single, KindR32, KindQOS)
	define(CBoNa1, "C_BO_NA_1", single, KindBSI)
	define(CScTa1, "C_SC_TA_1", single, KindSCO, KindCP56)
	define(CDcTa1, "C_DC_TA_1", single, KindDCO, KindCP56)
	define(CRcTa1, "C_RC_TA_1", single, KindRCO, KindCP56)
	define(CSeTa1, "C_SE_TA_1", single, KindNVA, KindQOS, KindCP56)
	define(CSeTb1, "C_SE_TB_1", single, KindSVA, KindQOS, KindCP56)
	define(CSeTc1, "C_SE_TC_1", single, KindR32, KindQOS, KindCP56)
	define(CBoTa1, "C_BO_TA_1", single, KindBSI, KindCP56)

	define(MEiNa1, "M_EI_NA_1", single, KindCOI)
	define(CIcNa1, "C_IC_NA_1", single, KindQOI)
	define(CCiNa1, "C_CI_NA_1", single, KindQCC)
	define(CRdNa1, "C_RD_NA_1", single)
	define(CCsNa1, "C_CS_NA_1", single, KindCP56)
	define(CTsNa1, "C_TS_NA_1", single, KindFBP)
	define(CRpNa1, "C_RP_NA_1", single, KindQRP)
	define(CCdNa1, "C_CD_NA_1", single, KindCP16)
	define(CTsTa1, "C_TS_TA_1", single, KindTSC, KindCP56)
	define(PMeNa1, "P_ME_NA_1", single, KindNVA, KindQPM)
	define(PMeNb1, "P_ME_NB_1", single, KindSVA, KindQPM)
	define(PMeNc1, "P_ME_NC_1", single, KindR32, KindQPM)
	define(PAcNa1, "P_AC_NA_1", single, KindQPA)

	define(FFrNa1, "F_FR_NA_1", single, KindNOF, KindLOF, KindFRQ)
	define(FSrNa1, "F_SR_NA_1", single, KindNOF, KindNOS, KindLOF, KindSRQ)
	define(FScNa1, "F_SC_NA_1", single, KindNOF, KindNOS, KindSCQ)
	define(FLsNa1, "F_LS_NA_1", single, KindNOF, KindNOS, KindLSQ, KindCHS)
	define(FAfNa1, "F_AF_NA_1", single, KindNOF, KindNOS, KindAFQ)
	define(FSgNa1, "F_SG_NA_1", single, KindNOF, KindNOS, KindSEG)
	define(FDrTa1, "F_DR_TA_1", seq, KindNOF, KindLOF, KindSOF, KindCP56)
	define(FScNb1, "F_SC_NB_1", single, KindNOF, KindCP56, KindCP56)
}

// Layout returns the element kinds of one information object of type t, or nil when t
// has no built-in layout.
func Layout(t TypeID) []ElementKind {
	info := typeTable[t]
	if !info.known {
		return nil
	}

	return append([]ElementKind(nil), info.elems...)
}
